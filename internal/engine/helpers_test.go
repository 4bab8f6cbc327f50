package engine

import (
	"context"
	"time"

	"pilotfish/internal/exchange"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) PlaceOrder(ctx context.Context, req exchange.PlaceOrderRequest) (exchange.PlaceOrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(exchange.PlaceOrderResult), args.Error(1)
}

func (m *MockGateway) OpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Order), args.Error(1)
}

func (m *MockGateway) OrderHistory(ctx context.Context, symbol string, since time.Time) ([]exchange.Order, error) {
	args := m.Called(ctx, symbol, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]exchange.Order), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, symbol, orderID string) error {
	args := m.Called(ctx, symbol, orderID)
	return args.Error(0)
}

func (m *MockGateway) Instrument(ctx context.Context, symbol string) (exchange.Instrument, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(exchange.Instrument), args.Error(1)
}

type stubMarket struct {
	ind exchange.Indicators
	err error
}

func (s *stubMarket) Indicators(ctx context.Context, symbol string) (exchange.Indicators, error) {
	return s.ind, s.err
}

type stubConfigs struct {
	cfgs   map[string]TradingConfig
	hashes map[string]string
}

func (s *stubConfigs) TradingConfig(symbol string) (TradingConfig, bool) {
	cfg, ok := s.cfgs[symbol]
	return cfg, ok
}

func (s *stubConfigs) ConfigHash(symbol string) string {
	return s.hashes[symbol]
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Send(_ context.Context, message, _ string) error {
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, message)
	return nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func noSleep(context.Context, time.Duration) error { return nil }
