package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorely/internal/auth"
)

// HandleWebSocket upgrades an identified request and streams the caller's
// household updates until the connection closes.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN clients connect from any origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "tenant_id", id.TenantID, "member_id", id.UserID)
		NewClient(hub, conn, id.TenantID, id.UserID).Run(r.Context())
		logger.Debug("websocket disconnected", "tenant_id", id.TenantID, "member_id", id.UserID)
	}
}
