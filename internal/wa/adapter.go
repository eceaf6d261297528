// Package wa wraps the whatsmeow client: connection lifecycle, QR
// pairing, event fan-out onto the bus, and the platform.Client surface
// the search engine consumes.
package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"

	"github.com/BENZOOgataga/DeepSearch/internal/bus"
	"github.com/BENZOOgataga/DeepSearch/internal/session"
	"github.com/BENZOOgataga/DeepSearch/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
// History reads are served from the local archive, not the network: the
// platform pushes history to us, we never page it remotely.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	db        *store.DB
	bus       *bus.Bus
	logger    *zap.Logger
	session   string
}

// NewAdapter creates a new WhatsApp adapter for the given session.
func NewAdapter(ctx context.Context, sessionName string, db *store.DB, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("DeepSearch", [3]uint32{0, 1, 0})

	dbPath := session.DeviceDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		db:        db,
		bus:       b,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}
