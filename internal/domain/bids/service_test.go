package bids

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/autobizz/autobet/internal/domain/auctions"
	"github.com/autobizz/autobet/pkg/events"
)

// fakeTx satisfies pgx.Tx for unit tests; only Commit and Rollback are called
// directly by the service, everything else goes through mocked repositories.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(ctx context.Context) error   { f.committed = true; return nil }
func (f *fakeTx) Rollback(ctx context.Context) error { f.rolledBack = true; return nil }

type fakeTxManager struct {
	tx *fakeTx
}

func (f *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return f.tx, nil
}

type noopCache struct {
	invalidations int
}

func (c *noopCache) GetListing(ctx context.Context, key string) ([]*auctions.Auction, bool) {
	return nil, false
}
func (c *noopCache) SetListing(ctx context.Context, key string, list []*auctions.Auction) {}
func (c *noopCache) Invalidate(ctx context.Context)                                       { c.invalidations++ }

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) CountByAuctionAndBuyer(ctx context.Context, tx pgx.Tx, auctionID, buyerID uuid.UUID) (int, error) {
	args := m.Called(ctx, tx, auctionID, buyerID)
	return args.Int(0), args.Error(1)
}

func (m *MockBidRepository) GetBestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) (*Bid, error) {
	args := m.Called(ctx, tx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Bid), args.Error(1)
}

func (m *MockBidRepository) ListBidsByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) ListBidsForAuctions(ctx context.Context, auctionIDs []uuid.UUID) (map[uuid.UUID][]*Bid, error) {
	args := m.Called(ctx, auctionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]*Bid), args.Error(1)
}

type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) GetAuctionByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*auctions.Auction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auctions.Auction), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) CreateEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*events.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status events.OutboxStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

func activeAuction(minPriceCents int64) *auctions.Auction {
	now := time.Now()
	return &auctions.Auction{
		ID:            uuid.New(),
		SellerID:      uuid.New(),
		Title:         "2019 Renault Clio",
		MinPriceCents: minPriceCents,
		Currency:      "EUR",
		Status:        auctions.StatusActive,
		StartAt:       now.Add(-time.Hour),
		EndAt:         now.Add(23 * time.Hour),
	}
}

func TestPlaceBid(t *testing.T) {
	buyerID := uuid.New()

	tests := []struct {
		name      string
		amount    int64
		setupMock func(*MockAuctionRepository, *MockBidRepository, *MockOutboxRepository, *auctions.Auction)
		wantErr   error
	}{
		{
			name:   "first bid on fresh auction succeeds",
			amount: 500_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
				br.On("CountByAuctionAndBuyer", mock.Anything, mock.Anything, a.ID, buyerID).Return(0, nil)
				br.On("GetBestBid", mock.Anything, mock.Anything, a.ID).Return(nil, nil)
				br.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
				or.On("CreateEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name:    "zero amount rejected before any lookup",
			amount:  0,
			wantErr: ErrInvalidBidAmount,
		},
		{
			name:   "unknown auction",
			amount: 500_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(nil, nil)
			},
			wantErr: ErrAuctionNotFound,
		},
		{
			name:   "auction not active",
			amount: 500_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				a.Status = auctions.StatusClosed
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
			},
			wantErr: ErrAuctionNotActive,
		},
		{
			name:   "bidding window passed",
			amount: 500_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				a.EndAt = time.Now().Add(-time.Minute)
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
			},
			wantErr: ErrAuctionClosed,
		},
		{
			name:   "two bids already placed",
			amount: 500_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
				br.On("CountByAuctionAndBuyer", mock.Anything, mock.Anything, a.ID, buyerID).Return(MaxBidsPerBuyer, nil)
			},
			wantErr: ErrBidLimitReached,
		},
		{
			name:   "below minimum price",
			amount: 100_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
				br.On("CountByAuctionAndBuyer", mock.Anything, mock.Anything, a.ID, buyerID).Return(0, nil)
			},
			wantErr: ErrBidBelowMinimum,
		},
		{
			name:   "not above current best",
			amount: 600_000,
			setupMock: func(ar *MockAuctionRepository, br *MockBidRepository, or *MockOutboxRepository, a *auctions.Auction) {
				ar.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, a.ID).Return(a, nil)
				br.On("CountByAuctionAndBuyer", mock.Anything, mock.Anything, a.ID, buyerID).Return(1, nil)
				br.On("GetBestBid", mock.Anything, mock.Anything, a.ID).Return(&Bid{AmountCents: 600_000}, nil)
			},
			wantErr: ErrBidNotHighest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auctionRepo := new(MockAuctionRepository)
			bidRepo := new(MockBidRepository)
			outboxRepo := new(MockOutboxRepository)
			tx := &fakeTx{}
			cache := &noopCache{}

			auction := activeAuction(400_000)
			if tt.setupMock != nil {
				tt.setupMock(auctionRepo, bidRepo, outboxRepo, auction)
			}

			svc := NewService(&fakeTxManager{tx: tx}, bidRepo, auctionRepo, outboxRepo, cache)
			bid, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
				AuctionID:   auction.ID,
				BuyerID:     buyerID,
				AmountCents: tt.amount,
			})

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, bid)
				assert.False(t, tx.committed)
				assert.Zero(t, cache.invalidations)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, bid)
			assert.Equal(t, auction.ID, bid.AuctionID)
			assert.Equal(t, buyerID, bid.BuyerID)
			assert.Equal(t, tt.amount, bid.AmountCents)
			assert.Equal(t, 1, bid.IdxPerBuyer)
			assert.True(t, tx.committed)
			assert.Equal(t, 1, cache.invalidations)
			outboxRepo.AssertCalled(t, "CreateEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*events.OutboxEvent"))
		})
	}
}

func TestPlaceBid_SecondBidIncrementsIndex(t *testing.T) {
	auctionRepo := new(MockAuctionRepository)
	bidRepo := new(MockBidRepository)
	outboxRepo := new(MockOutboxRepository)
	tx := &fakeTx{}
	buyerID := uuid.New()

	auction := activeAuction(400_000)
	auctionRepo.On("GetAuctionByIDForUpdate", mock.Anything, mock.Anything, auction.ID).Return(auction, nil)
	bidRepo.On("CountByAuctionAndBuyer", mock.Anything, mock.Anything, auction.ID, buyerID).Return(1, nil)
	bidRepo.On("GetBestBid", mock.Anything, mock.Anything, auction.ID).Return(&Bid{AmountCents: 450_000}, nil)
	bidRepo.On("SaveBid", mock.Anything, mock.Anything, mock.AnythingOfType("*bids.Bid")).Return(nil)
	outboxRepo.On("CreateEvent", mock.Anything, mock.Anything, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)

	svc := NewService(&fakeTxManager{tx: tx}, bidRepo, auctionRepo, outboxRepo, &noopCache{})
	bid, err := svc.PlaceBid(context.Background(), PlaceBidCommand{
		AuctionID:   auction.ID,
		BuyerID:     buyerID,
		AmountCents: 500_000,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, bid.IdxPerBuyer)
}
