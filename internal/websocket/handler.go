package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorepoints/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the
// caller's family events to it.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID := auth.FamilyID(r.Context())
		if familyID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // family devices on the LAN connect from any origin
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, familyID).Run(r.Context())
	}
}
