package testutils

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/padbridge/internal/device"
	"github.com/stretchr/testify/mock"
)

// Advertisement is a static device.Advertisement for scan tests.
type Advertisement struct {
	Name         string
	Address      string
	Signal       int
	ServiceUUIDs []string
}

func (a *Advertisement) LocalName() string  { return a.Name }
func (a *Advertisement) Addr() string       { return a.Address }
func (a *Advertisement) RSSI() int          { return a.Signal }
func (a *Advertisement) Connectable() bool  { return true }
func (a *Advertisement) Services() []string { return a.ServiceUUIDs }

// MockAdapter is a testify mock of device.Adapter. Scan replays Advertisements
// before returning the error configured with On("Scan", ...).
type MockAdapter struct {
	mock.Mock

	Advertisements []device.Advertisement
}

func (m *MockAdapter) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup)
	for _, adv := range m.Advertisements {
		handler(adv)
	}
	return args.Error(0)
}

func (m *MockAdapter) Dial(ctx context.Context, address string) (device.Client, error) {
	args := m.Called(ctx, address)
	client, _ := args.Get(0).(device.Client)
	return client, args.Error(1)
}

// MockClient is a testify mock of device.Client. Link state is tracked by the mock
// itself: it starts connected, Drop simulates a stack-reported loss.
type MockClient struct {
	mock.Mock

	address   string
	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

func NewMockClient(address string) *MockClient {
	m := &MockClient{address: address, done: make(chan struct{})}
	m.connected.Store(true)
	return m
}

func (m *MockClient) Address() string { return m.address }

func (m *MockClient) DiscoverService(uuid string) (device.Service, error) {
	args := m.Called(uuid)
	svc, _ := args.Get(0).(device.Service)
	return svc, args.Error(1)
}

func (m *MockClient) Pair(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockClient) IsConnected() bool { return m.connected.Load() }

func (m *MockClient) Disconnected() <-chan struct{} { return m.done }

func (m *MockClient) Disconnect() error {
	args := m.Called()
	m.Drop()
	return args.Error(0)
}

// Drop marks the link as lost without a Disconnect call.
func (m *MockClient) Drop() {
	m.connected.Store(false)
	m.closeOnce.Do(func() { close(m.done) })
}

// WithService registers svc for DiscoverService(svc.UUID()).
func (m *MockClient) WithService(svc *MockService) *MockClient {
	m.On("DiscoverService", svc.UUID()).Return(svc, nil)
	return m
}

// MockService is a testify mock of device.Service
type MockService struct {
	mock.Mock

	uuid string
}

func NewMockService(uuid string) *MockService {
	return &MockService{uuid: uuid}
}

func (m *MockService) UUID() string { return m.uuid }

func (m *MockService) Characteristic(uuid string) (device.Characteristic, error) {
	args := m.Called(uuid)
	ch, _ := args.Get(0).(device.Characteristic)
	return ch, args.Error(1)
}

// WithCharacteristic registers ch for Characteristic(ch.UUID()).
func (m *MockService) WithCharacteristic(ch *MockCharacteristic) *MockService {
	m.On("Characteristic", ch.UUID()).Return(ch, nil)
	return m
}

// MockCharacteristic is a testify mock of device.Characteristic that also records
// written payloads and keeps the subscribed handler so tests can push notifications.
type MockCharacteristic struct {
	mock.Mock

	uuid string

	mu      sync.Mutex
	written [][]byte
	handler func([]byte)
}

func NewMockCharacteristic(uuid string) *MockCharacteristic {
	return &MockCharacteristic{uuid: uuid}
}

func (m *MockCharacteristic) UUID() string { return m.uuid }

func (m *MockCharacteristic) Read(timeout time.Duration) ([]byte, error) {
	args := m.Called(timeout)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockCharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	args := m.Called(data, withResponse, timeout)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.written = append(m.written, append([]byte(nil), data...))
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockCharacteristic) Subscribe(handler func([]byte)) error {
	args := m.Called()
	if args.Error(0) == nil {
		m.mu.Lock()
		m.handler = handler
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockCharacteristic) Unsubscribe() error {
	return m.Called().Error(0)
}

// Notify invokes the subscribed handler; returns false if nothing is subscribed.
func (m *MockCharacteristic) Notify(data []byte) bool {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(data)
	return true
}

// Written returns a copy of every successfully written payload in order.
func (m *MockCharacteristic) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}
