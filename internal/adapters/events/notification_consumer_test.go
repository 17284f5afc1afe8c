package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autobizz/autobet/internal/domain/notifications"
	pkgevents "github.com/autobizz/autobet/pkg/events"
)

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, list []*notifications.Notification) error {
	args := m.Called(ctx, list)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*notifications.Notification, error) {
	args := m.Called(ctx, userID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notifications.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID, notificationID)
	return args.Bool(0), args.Error(1)
}

type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) UpsertDevice(ctx context.Context, userID uuid.UUID, token string) (*notifications.Device, error) {
	args := m.Called(ctx, userID, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notifications.Device), args.Error(1)
}

func (m *MockDeviceRepository) ListTokensForUsers(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockAudienceRepository struct {
	mock.Mock
}

func (m *MockAudienceRepository) ListActiveBuyerIDs(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAudienceRepository) ListBidderIDs(ctx context.Context, auctionID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type pushCall struct {
	tokens []string
	title  string
	body   string
	data   map[string]any
}

type fakePusher struct {
	calls []pushCall
}

func (p *fakePusher) Send(ctx context.Context, tokens []string, title, body string, data map[string]any) {
	p.calls = append(p.calls, pushCall{tokens: tokens, title: title, body: body, data: data})
}

func newTestConsumer(t *testing.T) (*NotificationConsumer, *MockNotificationRepository, *MockDeviceRepository, *MockAudienceRepository, *fakePusher) {
	t.Helper()

	notificationRepo := new(MockNotificationRepository)
	deviceRepo := new(MockDeviceRepository)
	audienceRepo := new(MockAudienceRepository)
	pusher := &fakePusher{}
	service := notifications.NewService(notificationRepo, deviceRepo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	consumer := NewNotificationConsumer(nil, service, audienceRepo, pusher, logger)
	return consumer, notificationRepo, deviceRepo, audienceRepo, pusher
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	return body
}

func TestHandleDelivery_AuctionCreated(t *testing.T) {
	consumer, notificationRepo, deviceRepo, audienceRepo, pusher := newTestConsumer(t)

	buyers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	audienceRepo.On("ListActiveBuyerIDs", mock.Anything).Return(buyers, nil)
	notificationRepo.On("CreateNotifications", mock.Anything, mock.MatchedBy(func(list []*notifications.Notification) bool {
		if len(list) != len(buyers) {
			return false
		}
		for i, n := range list {
			if n.UserID != buyers[i] || n.Type != notifications.TypeNewAuction {
				return false
			}
		}
		return true
	})).Return(nil)
	deviceRepo.On("ListTokensForUsers", mock.Anything, buyers).Return([]string{"ExponentPushToken[aaa]"}, nil)

	body := mustJSON(t, pkgevents.AuctionCreated{
		AuctionID: uuid.NewString(),
		SellerID:  uuid.NewString(),
		Title:     "2018 Peugeot 308",
		Currency:  "EUR",
		CreatedAt: time.Now(),
	})

	err := consumer.handleDelivery(context.Background(), pkgevents.TypeAuctionCreated, body)

	require.NoError(t, err)
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, "New auction available", pusher.calls[0].title)
	assert.Equal(t, "2018 Peugeot 308", pusher.calls[0].body)
	assert.Equal(t, []string{"ExponentPushToken[aaa]"}, pusher.calls[0].tokens)
	notificationRepo.AssertExpectations(t)
	audienceRepo.AssertExpectations(t)
}

func TestHandleDelivery_AuctionCreatedWithoutTitle(t *testing.T) {
	consumer, notificationRepo, deviceRepo, audienceRepo, pusher := newTestConsumer(t)

	buyers := []uuid.UUID{uuid.New()}
	audienceRepo.On("ListActiveBuyerIDs", mock.Anything).Return(buyers, nil)
	notificationRepo.On("CreateNotifications", mock.Anything, mock.Anything).Return(nil)
	deviceRepo.On("ListTokensForUsers", mock.Anything, buyers).Return([]string{"ExponentPushToken[aaa]"}, nil)

	body := mustJSON(t, pkgevents.AuctionCreated{AuctionID: uuid.NewString(), SellerID: uuid.NewString()})

	err := consumer.handleDelivery(context.Background(), pkgevents.TypeAuctionCreated, body)

	require.NoError(t, err)
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, "A new vehicle auction just went live.", pusher.calls[0].body)
}

func TestHandleDelivery_BidPlacedNotifiesSellerOnly(t *testing.T) {
	consumer, notificationRepo, deviceRepo, _, pusher := newTestConsumer(t)

	sellerID := uuid.New()
	notificationRepo.On("CreateNotifications", mock.Anything, mock.MatchedBy(func(list []*notifications.Notification) bool {
		if len(list) != 1 || list[0].UserID != sellerID || list[0].Type != notifications.TypeResult {
			return false
		}
		latest, ok := list[0].Payload["latest_bid"].(map[string]any)
		return ok && latest["amount_cents"] == int64(500_000)
	})).Return(nil)
	deviceRepo.On("ListTokensForUsers", mock.Anything, []uuid.UUID{sellerID}).Return([]string{"ExponentPushToken[seller]"}, nil)

	body := mustJSON(t, pkgevents.BidPlaced{
		BidID:       uuid.NewString(),
		AuctionID:   uuid.NewString(),
		SellerID:    sellerID.String(),
		BuyerID:     uuid.NewString(),
		AmountCents: 500_000,
		Currency:    "EUR",
		CreatedAt:   time.Now(),
	})

	err := consumer.handleDelivery(context.Background(), pkgevents.TypeBidPlaced, body)

	require.NoError(t, err)
	require.Len(t, pusher.calls, 1)
	assert.Equal(t, "Auction update", pusher.calls[0].title)
	assert.Equal(t, "Latest bid: EUR 5000.00", pusher.calls[0].body)
	notificationRepo.AssertExpectations(t)
}

func TestHandleDelivery_AuctionClosedNotifiesSellerAndBidders(t *testing.T) {
	consumer, notificationRepo, deviceRepo, audienceRepo, pusher := newTestConsumer(t)

	auctionID := uuid.New()
	sellerID := uuid.New()
	bidders := []uuid.UUID{uuid.New(), uuid.New()}
	recipients := append([]uuid.UUID{sellerID}, bidders...)

	audienceRepo.On("ListBidderIDs", mock.Anything, auctionID).Return(bidders, nil)
	notificationRepo.On("CreateNotifications", mock.Anything, mock.MatchedBy(func(list []*notifications.Notification) bool {
		if len(list) != len(recipients) {
			return false
		}
		for i, n := range list {
			if n.UserID != recipients[i] || n.Type != notifications.TypeResult {
				return false
			}
		}
		return true
	})).Return(nil)
	deviceRepo.On("ListTokensForUsers", mock.Anything, recipients).Return([]string{}, nil)

	body := mustJSON(t, pkgevents.AuctionClosed{
		AuctionID: auctionID.String(),
		SellerID:  sellerID.String(),
		Title:     "2019 Renault Clio",
		ClosedAt:  time.Now(),
	})

	err := consumer.handleDelivery(context.Background(), pkgevents.TypeAuctionClosed, body)

	require.NoError(t, err)
	// No registered devices, so no push goes out.
	assert.Empty(t, pusher.calls)
	notificationRepo.AssertExpectations(t)
	audienceRepo.AssertExpectations(t)
}

func TestHandleDelivery_UnknownRoutingKeyDropped(t *testing.T) {
	consumer, notificationRepo, _, _, pusher := newTestConsumer(t)

	err := consumer.handleDelivery(context.Background(), "auction.renamed", []byte(`{}`))

	require.NoError(t, err)
	assert.Empty(t, pusher.calls)
	notificationRepo.AssertNotCalled(t, "CreateNotifications", mock.Anything, mock.Anything)
}

func TestHandleDelivery_PoisonMessagesDropped(t *testing.T) {
	for _, key := range []string{pkgevents.TypeAuctionCreated, pkgevents.TypeBidPlaced, pkgevents.TypeAuctionClosed} {
		t.Run(key, func(t *testing.T) {
			consumer, notificationRepo, _, _, _ := newTestConsumer(t)

			err := consumer.handleDelivery(context.Background(), key, []byte(`{not json`))

			// Malformed payloads must not be requeued forever.
			require.NoError(t, err)
			notificationRepo.AssertNotCalled(t, "CreateNotifications", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleDelivery_PushFailureDoesNotFailEvent(t *testing.T) {
	consumer, notificationRepo, deviceRepo, audienceRepo, pusher := newTestConsumer(t)

	buyers := []uuid.UUID{uuid.New()}
	audienceRepo.On("ListActiveBuyerIDs", mock.Anything).Return(buyers, nil)
	notificationRepo.On("CreateNotifications", mock.Anything, mock.Anything).Return(nil)
	deviceRepo.On("ListTokensForUsers", mock.Anything, buyers).Return(nil, assert.AnError)

	body := mustJSON(t, pkgevents.AuctionCreated{AuctionID: uuid.NewString(), SellerID: uuid.NewString(), Title: "t"})

	err := consumer.handleDelivery(context.Background(), pkgevents.TypeAuctionCreated, body)

	require.NoError(t, err)
	assert.Empty(t, pusher.calls)
}
