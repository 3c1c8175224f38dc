package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/maatcontabil/portal/internal/payment"
)

// PixWebhook recebe callbacks de pagamento do Banco Inter. A resposta é
// sempre 200: um payload que não parseia hoje não vai parsear na
// reentrega, e txids desconhecidos ou repetidos não devem fazer o banco
// reenfileirar o callback.
func (h *Handler) PixWebhook(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Pix []struct {
			TxID    string `json:"txid"`
			Valor   string `json:"valor"`
			Horario string `json:"horario"`
		} `json:"pix"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("webhook pix: payload inválido")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
		return
	}

	for _, item := range payload.Pix {
		txid := strings.TrimSpace(item.TxID)
		if txid == "" {
			continue
		}

		if _, err := h.payments.ConfirmPayment(r.Context(), txid); err != nil {
			if errors.Is(err, payment.ErrUnknownTransaction) {
				log.Warn().Str("txid", txid).Msg("webhook pix: txid sem solicitação correlata")
				continue
			}
			log.Error().Err(err).Str("txid", txid).Msg("webhook pix: confirmação falhou")
			continue
		}
		log.Info().Str("txid", txid).Msg("webhook pix: pagamento confirmado")
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
