package wa

import (
	"context"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.uber.org/zap"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR auth flow and streams events to the bus.
// Each pairing code is also rendered as a PNG under the session dir so a
// headless operator can scan it without a terminal QR renderer.
// Returns a channel of AuthEvents. The caller should read until the
// channel closes.
func (a *Adapter) StartQRAuth(ctx context.Context) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			a.bus.Publish(bus.Event{
				Kind:      bus.KindSessionAuthFailed,
				Timestamp: time.Now(),
				Payload:   err.Error(),
			})
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				a.writeQRImage(item.Code)
				out <- AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
				a.bus.Publish(bus.Event{
					Kind:      bus.KindSessionQRGenerated,
					Timestamp: time.Now(),
					Payload:   item.Code,
				})
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				a.bus.Publish(bus.Event{
					Kind:      bus.KindSessionAuthenticated,
					Timestamp: time.Now(),
				})
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}
				a.bus.Publish(bus.Event{
					Kind:      bus.KindSessionAuthFailed,
					Timestamp: time.Now(),
					Payload:   "timeout",
				})
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}
					a.bus.Publish(bus.Event{
						Kind:      bus.KindSessionAuthFailed,
						Timestamp: time.Now(),
						Payload:   item.Error.Error(),
					})
					return
				}
			}
		}
	}()

	return out, nil
}

func (a *Adapter) writeQRImage(code string) {
	path := session.QRPath(a.session)
	if err := qrcode.WriteFile(code, qrcode.Medium, 512, path); err != nil {
		a.logger.Warn("failed to write QR image", zap.Error(err), zap.String("path", path))
	}
}

// IsQREvent checks whether a QR channel item is a QR code event.
func IsQREvent(item whatsmeow.QRChannelItem) bool {
	return item.Event == "code"
}
