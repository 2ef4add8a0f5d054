package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"salescadence/realtime"
)

// RealtimeController streams a company's cadence events over websocket.
type RealtimeController struct {
	Hub          *realtime.Hub
	Logger       *logrus.Entry
	PingInterval time.Duration
}

func NewRealtimeController(hub *realtime.Hub, logger *logrus.Entry) *RealtimeController {
	return &RealtimeController{
		Hub:          hub,
		Logger:       logger,
		PingInterval: 30 * time.Second,
	}
}

// RequireUpgrade rejects plain HTTP requests to the stream endpoint.
func (rc *RealtimeController) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream forwards hub events as JSON frames until either side closes.
func (rc *RealtimeController) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()

		companyID, _ := conn.Locals("companyID").(uint)
		userID, _ := conn.Locals("userID").(uint)
		if companyID == 0 {
			return
		}
		sub := rc.Hub.Subscribe(companyID)
		defer sub.Close()

		log := rc.Logger.WithFields(logrus.Fields{
			"company_id":    companyID,
			"user_id":       userID,
			"subscriber_id": sub.ID,
		})
		log.Info("Realtime subscriber connected")
		defer log.Info("Realtime subscriber disconnected")

		// The client sends nothing we act on; reading detects its close.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(rc.PingInterval)
		defer ping.Stop()
		for {
			select {
			case <-closed:
				return
			case e, ok := <-sub.C:
				if !ok {
					return
				}
				if err := conn.WriteJSON(e); err != nil {
					log.WithError(err).Debug("Realtime write failed")
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			}
		}
	})
}
