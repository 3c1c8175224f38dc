package http

import (
	"encoding/json"
	"net/http"
)

// Toda resposta da API usa o mesmo envelope {data, error}: exatamente um
// dos dois campos é não nulo.

type SuccessEnvelope struct {
	Data  any `json:"data"`
	Error any `json:"error"`
}

type ErrorEnvelope struct {
	Data  any        `json:"data"`
	Error *ErrorBody `json:"error"`
}

// ErrorBody carrega o código estável (usado pelo front) e a mensagem
// legível; Details é opcional e livre.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve o envelope de sucesso.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(SuccessEnvelope{Data: data})
}

// WriteError escreve o envelope de erro.
func WriteError(w http.ResponseWriter, status int, code, message string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Error: &ErrorBody{Code: code, Message: message, Details: details},
	})
}
