package auctions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autobizz/autobet/internal/domain/users"
	"github.com/autobizz/autobet/pkg/database"
	"github.com/autobizz/autobet/pkg/events"
)

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrMissingTitle        = errors.New("missing title")
	ErrMissingDescription  = errors.New("missing description")
	ErrInvalidPrice        = errors.New("minimum price must be positive")
	ErrInvalidCurrency     = errors.New("currency must be a three-letter code")
	ErrTooManyImages       = errors.New("too many images for one auction")
	ErrMissingCarteGrise   = errors.New("missing carte grise image")
	ErrNotOwner            = errors.New("cannot modify another seller's auction")
	ErrInvalidStatusFilter = errors.New("invalid status filter")
	ErrNoUpdates           = errors.New("no valid updates provided")
)

// ListingCacheKey is the only listing the cache fronts: the default public view.
const ListingCacheKey = "auctions:active:fresh"

type CreateAuctionCommand struct {
	SellerID           uuid.UUID
	Title              string
	Description        string
	MinPriceCents      int64
	Currency           string
	ImageURLs          []string
	CarteGriseImageURL string
}

// UpdateAuctionCommand carries optional fields; nil means "leave unchanged".
type UpdateAuctionCommand struct {
	AuctionID          uuid.UUID
	ActorID            uuid.UUID
	ActorRole          users.Role
	Title              *string
	Description        *string
	MinPriceCents      *int64
	Currency           *string
	ImageURLs          *[]string
	CarteGriseImageURL *string
}

type Service struct {
	repo       Repository
	outboxRepo events.OutboxRepository
	txManager  database.TransactionManager
	cache      ListingCache
}

func NewService(
	repo Repository,
	outboxRepo events.OutboxRepository,
	txManager database.TransactionManager,
	cache ListingCache,
) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		txManager:  txManager,
		cache:      cache,
	}
}

// CreateAuction validates and persists a listing. Auctions go live immediately
// with a 24-hour bidding window; the outbox event fans out buyer notifications.
func (s *Service) CreateAuction(ctx context.Context, cmd CreateAuctionCommand) (*Auction, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return nil, ErrMissingTitle
	}
	description := strings.TrimSpace(cmd.Description)
	if description == "" {
		return nil, ErrMissingDescription
	}
	if cmd.MinPriceCents <= 0 {
		return nil, ErrInvalidPrice
	}
	currency, err := normalizeCurrency(cmd.Currency)
	if err != nil {
		return nil, err
	}
	images, err := normalizeImages(cmd.ImageURLs)
	if err != nil {
		return nil, err
	}
	carteGrise := strings.TrimSpace(cmd.CarteGriseImageURL)
	if carteGrise == "" {
		return nil, ErrMissingCarteGrise
	}

	now := time.Now()
	auction := &Auction{
		ID:                 uuid.New(),
		SellerID:           cmd.SellerID,
		Title:              title,
		Description:        description,
		MinPriceCents:      cmd.MinPriceCents,
		Currency:           currency,
		ImageURLs:          images,
		CarteGriseImageURL: carteGrise,
		Status:             StatusActive,
		StartAt:            now,
		EndAt:              now.Add(AuctionWindow),
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.CreateAuction(ctx, tx, auction); err != nil {
		return nil, fmt.Errorf("failed to create auction: %w", err)
	}

	payload, err := json.Marshal(events.AuctionCreated{
		AuctionID: auction.ID.String(),
		SellerID:  auction.SellerID.String(),
		Title:     auction.Title,
		Currency:  auction.Currency,
		CreatedAt: auction.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.TypeAuctionCreated,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if err := s.outboxRepo.CreateEvent(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx)

	return auction, nil
}

func (s *Service) GetAuction(ctx context.Context, id uuid.UUID) (*Auction, error) {
	auction, err := s.repo.GetAuctionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}
	if auction == nil {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

// ListAuctions serves the public listing. The default view (active, fresh,
// no extra filters) is served from the cache when warm.
func (s *Service) ListAuctions(ctx context.Context, q ListQuery) ([]*Auction, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	cacheable := q.Status == string(StatusActive) && q.Sort == "fresh" &&
		q.CreatedAfter == nil && q.Limit == DefaultPageSize
	if cacheable {
		if cached, ok := s.cache.GetListing(ctx, ListingCacheKey); ok {
			return cached, nil
		}
	}

	auctions, err := s.repo.ListAuctions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}

	if cacheable {
		s.cache.SetListing(ctx, ListingCacheKey, auctions)
	}

	return auctions, nil
}

// ListParticipating returns auctions the buyer has placed bids on.
func (s *Service) ListParticipating(ctx context.Context, buyerID uuid.UUID, q ListQuery) ([]*Auction, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}
	auctions, err := s.repo.ListParticipating(ctx, buyerID, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list participating auctions: %w", err)
	}
	return auctions, nil
}

// ListBySeller returns a seller's own auctions, optionally filtered by status.
// Status "all" or empty disables the filter.
func (s *Service) ListBySeller(ctx context.Context, sellerID uuid.UUID, status string) ([]*Auction, error) {
	if status != "" && status != "all" && !ValidStatus(status) {
		return nil, ErrInvalidStatusFilter
	}
	auctions, err := s.repo.ListBySeller(ctx, sellerID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list seller auctions: %w", err)
	}
	return auctions, nil
}

// ListAll returns every auction for the admin manage view.
func (s *Service) ListAll(ctx context.Context, status string) ([]*Auction, error) {
	if status != "" && status != "all" && !ValidStatus(status) {
		return nil, ErrInvalidStatusFilter
	}
	q := ListQuery{Status: status, Sort: "created", Limit: 0}
	if status == "" {
		q.Status = "all"
	}
	auctions, err := s.repo.ListAuctions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list auctions: %w", err)
	}
	return auctions, nil
}

// UpdateAuction applies the provided fields. Sellers may only edit their own
// auctions; admins may edit any.
func (s *Service) UpdateAuction(ctx context.Context, cmd UpdateAuctionCommand) (*Auction, error) {
	auction, err := s.GetAuction(ctx, cmd.AuctionID)
	if err != nil {
		return nil, err
	}

	if cmd.ActorRole == users.RoleSeller && auction.SellerID != cmd.ActorID {
		return nil, ErrNotOwner
	}

	applied := false

	if cmd.Title != nil {
		title := strings.TrimSpace(*cmd.Title)
		if title == "" {
			return nil, ErrMissingTitle
		}
		auction.Title = title
		applied = true
	}
	if cmd.Description != nil {
		description := strings.TrimSpace(*cmd.Description)
		if description == "" {
			return nil, ErrMissingDescription
		}
		auction.Description = description
		applied = true
	}
	if cmd.MinPriceCents != nil {
		if *cmd.MinPriceCents <= 0 {
			return nil, ErrInvalidPrice
		}
		auction.MinPriceCents = *cmd.MinPriceCents
		applied = true
	}
	if cmd.Currency != nil {
		currency, err := normalizeCurrency(*cmd.Currency)
		if err != nil {
			return nil, err
		}
		auction.Currency = currency
		applied = true
	}
	if cmd.ImageURLs != nil {
		images, err := normalizeImages(*cmd.ImageURLs)
		if err != nil {
			return nil, err
		}
		auction.ImageURLs = images
		applied = true
	}
	if cmd.CarteGriseImageURL != nil {
		carteGrise := strings.TrimSpace(*cmd.CarteGriseImageURL)
		if carteGrise == "" {
			return nil, ErrMissingCarteGrise
		}
		auction.CarteGriseImageURL = carteGrise
		applied = true
	}

	if !applied {
		return nil, ErrNoUpdates
	}

	auction.UpdatedAt = time.Now()

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.UpdateAuction(ctx, tx, auction); err != nil {
		return nil, fmt.Errorf("failed to update auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx)

	return auction, nil
}

// DeleteAuction removes the auction and its bids.
func (s *Service) DeleteAuction(ctx context.Context, actorID uuid.UUID, actorRole users.Role, id uuid.UUID) error {
	auction, err := s.GetAuction(ctx, id)
	if err != nil {
		return err
	}

	if actorRole == users.RoleSeller && auction.SellerID != actorID {
		return ErrNotOwner
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.DeleteAuction(ctx, tx, id); err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx)

	return nil
}

// CloseExpired flips active auctions past their window to closed and queues an
// auction.closed event per auction. Returns the number of auctions closed.
func (s *Service) CloseExpired(ctx context.Context, batchSize int) (int, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	expired, err := s.repo.ListExpiredActive(ctx, tx, now, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired auctions: %w", err)
	}
	if len(expired) == 0 {
		return 0, nil
	}

	for _, auction := range expired {
		if err := s.repo.UpdateStatus(ctx, tx, auction.ID, StatusClosed); err != nil {
			return 0, fmt.Errorf("failed to close auction %s: %w", auction.ID, err)
		}

		payload, err := json.Marshal(events.AuctionClosed{
			AuctionID: auction.ID.String(),
			SellerID:  auction.SellerID.String(),
			Title:     auction.Title,
			ClosedAt:  now,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal event: %w", err)
		}

		outboxEvent := &events.OutboxEvent{
			ID:        uuid.New(),
			EventType: events.TypeAuctionClosed,
			Payload:   payload,
			Status:    events.OutboxStatusPending,
			CreatedAt: now,
		}
		if err := s.outboxRepo.CreateEvent(ctx, tx, outboxEvent); err != nil {
			return 0, fmt.Errorf("failed to create outbox event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Invalidate(ctx)

	return len(expired), nil
}

func normalizeQuery(q ListQuery) (ListQuery, error) {
	if q.Status == "" {
		q.Status = string(StatusActive)
	}
	if q.Status != "all" && !ValidStatus(q.Status) {
		return q, ErrInvalidStatusFilter
	}
	if q.Sort != "created" {
		q.Sort = "fresh"
	}
	if q.Limit <= 0 || q.Limit > DefaultPageSize {
		q.Limit = DefaultPageSize
	}
	return q, nil
}

func normalizeCurrency(value string) (string, error) {
	if value == "" {
		return "EUR", nil
	}
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if len(normalized) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range normalized {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return normalized, nil
}

func normalizeImages(images []string) ([]string, error) {
	normalized := make([]string, 0, len(images))
	for _, image := range images {
		image = strings.TrimSpace(image)
		if image != "" {
			normalized = append(normalized, image)
		}
	}
	if len(normalized) > MaxImages {
		return nil, ErrTooManyImages
	}
	return normalized, nil
}
