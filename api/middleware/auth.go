package middleware

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openalpha/epoch-vault/api/types"
)

// APIKeyHeader carries an operator's API key
const APIKeyHeader = "X-API-Key"

const operatorKey contextKey = "operator"

type operatorCredential struct {
	digest [sha256.Size]byte
	agent  string
}

// RequireOperator admits requests whose API key belongs to a configured
// operator and stores the agent address bound to that key in the context.
// keys maps API key to agent address.
func RequireOperator(keys map[string]string) mux.MiddlewareFunc {
	creds := make([]operatorCredential, 0, len(keys))
	for key, agent := range keys {
		creds = append(creds, operatorCredential{digest: sha256.Sum256([]byte(key)), agent: agent})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(APIKeyHeader)
			if presented == "" {
				writeUnauthorized(w, r, "missing "+APIKeyHeader+" header")
				return
			}

			digest := sha256.Sum256([]byte(presented))
			agent := ""
			for _, c := range creds {
				if subtle.ConstantTimeCompare(digest[:], c.digest[:]) == 1 {
					agent = c.agent
				}
			}
			if agent == "" {
				writeUnauthorized(w, r, "unknown api key")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), operatorKey, agent)))
		})
	}
}

// GetOperator returns the agent authenticated by RequireOperator
func GetOperator(ctx context.Context) (string, bool) {
	agent, ok := ctx.Value(operatorKey).(string)
	return agent, ok && agent != ""
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error:     msg,
		Code:      "unauthorized",
		RequestID: GetRequestID(r.Context()),
	})
}
