package pix

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultAPIBase = "https://cdpj.partners.bancointer.com.br"
const defaultScope = "pix.write"

// AuthError sinaliza recusa do Banco Inter na obtenção do token.
// O detalhe do provedor é preservado na íntegra para diagnóstico.
type AuthError struct {
	Status int
	Detail string
}

func (e *AuthError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("banco inter oauth: status %d", e.Status)
	}
	return fmt.Sprintf("banco inter oauth: status %d: %s", e.Status, e.Detail)
}

// ChargeError sinaliza recusa do Banco Inter na emissão da cobrança.
type ChargeError struct {
	Status int
	Detail string
}

func (e *ChargeError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("banco inter cob: status %d", e.Status)
	}
	return fmt.Sprintf("banco inter cob: status %d: %s", e.Status, e.Detail)
}

// Config descreve as credenciais da integração Pix do Banco Inter.
// A API exige mTLS com o certificado emitido no internet banking.
type Config struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	CertFile      string
	KeyFile       string
	PixKey        string
	Scope         string
	ExpirySeconds int
}

// Client encapsula chamadas à API Pix do Banco Inter.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	pixKey       string
	scope        string
	expiry       int

	mu          sync.Mutex
	accessToken string
	tokenUntil  time.Time
}

// ChargeInput descreve a cobrança imediata a emitir.
type ChargeInput struct {
	Document    string
	PayerName   string
	Amount      float64
	Description string
}

// Charge é o resultado da emissão: o identificador da transação e o
// código copia e cola apresentado ao pagador.
type Charge struct {
	TxID          string
	PixCopiaECola string
	ExpiresAt     time.Time
}

// New cria o cliente carregando o par certificado/chave para o canal mTLS.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("pix: client id e client secret obrigatórios")
	}
	if strings.TrimSpace(cfg.PixKey) == "" {
		return nil, errors.New("pix: chave pix obrigatória")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("pix: carregar certificado mTLS: %w", err)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultAPIBase
	}
	scope := strings.TrimSpace(cfg.Scope)
	if scope == "" {
		scope = defaultScope
	}
	expiry := cfg.ExpirySeconds
	if expiry <= 0 {
		expiry = 3600
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{cert}},
	}

	return &Client{
		httpClient:   &http.Client{Timeout: 20 * time.Second, Transport: transport},
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pixKey:       cfg.PixKey,
		scope:        scope,
		expiry:       expiry,
	}, nil
}

// CreateCharge emite uma cobrança imediata (cob) e devolve txid e
// código copia e cola.
func (c *Client) CreateCharge(ctx context.Context, input ChargeInput) (*Charge, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	devedor := map[string]string{"nome": input.PayerName}
	if len(input.Document) > 11 {
		devedor["cnpj"] = input.Document
	} else {
		devedor["cpf"] = input.Document
	}

	body := map[string]any{
		"calendario": map[string]int{"expiracao": c.expiry},
		"devedor":    devedor,
		"valor": map[string]string{
			"original": fmt.Sprintf("%.2f", input.Amount),
		},
		"chave":              c.pixKey,
		"solicitacaoPagador": input.Description,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pix/v2/cob", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &ChargeError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var cob struct {
		TxID          string `json:"txid"`
		PixCopiaECola string `json:"pixCopiaECola"`
		Calendario    struct {
			Criacao   time.Time `json:"criacao"`
			Expiracao int       `json:"expiracao"`
		} `json:"calendario"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&cob); err != nil {
		return nil, err
	}
	if cob.TxID == "" {
		return nil, &ChargeError{Status: resp.StatusCode, Detail: "resposta sem txid"}
	}

	expiresAt := time.Now().UTC().Add(time.Duration(c.expiry) * time.Second)
	if !cob.Calendario.Criacao.IsZero() && cob.Calendario.Expiracao > 0 {
		expiresAt = cob.Calendario.Criacao.Add(time.Duration(cob.Calendario.Expiracao) * time.Second)
	}

	return &Charge{TxID: cob.TxID, PixCopiaECola: cob.PixCopiaECola, ExpiresAt: expiresAt}, nil
}

// token devolve um access token válido, reaproveitando o corrente
// enquanto não vence.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenUntil) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("scope", c.scope)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &AuthError{Status: resp.StatusCode, Detail: readDetail(resp.Body)}
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", &AuthError{Status: resp.StatusCode, Detail: "resposta sem access_token"}
	}

	ttl := time.Duration(token.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.accessToken = token.AccessToken
	c.tokenUntil = time.Now().Add(ttl - 30*time.Second)
	return c.accessToken, nil
}

// readDetail extrai a mensagem de erro do provedor sem interpretá-la.
func readDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}

	var payload struct {
		ErrorDescription string `json:"error_description"`
		Title            string `json:"title"`
		Detail           string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		switch {
		case payload.ErrorDescription != "":
			return payload.ErrorDescription
		case payload.Detail != "":
			return payload.Detail
		case payload.Title != "":
			return payload.Title
		}
	}
	return strings.TrimSpace(string(raw))
}
