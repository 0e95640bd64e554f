package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yproz/spp-monitor/internal/models"
	"github.com/yproz/spp-monitor/internal/parserapi"
	"github.com/yproz/spp-monitor/internal/repository"
)

// ClientStore interface for dependency injection
type ClientStore interface {
	GetByID(ctx context.Context, clientID string) (*models.Client, error)
}

// ProductStore interface for product lookups
type ProductStore interface {
	ListByAccount(ctx context.Context, accountID int64) ([]models.Product, error)
}

// SubmitterJobStore is the slice of the job repository the submitter needs.
type SubmitterJobStore interface {
	Create(ctx context.Context, job models.CollectionJob) error
	GetActiveByAccount(ctx context.Context, accountID int64) (*models.CollectionJob, error)
}

// OrderCreator submits collection orders to the provider.
type OrderCreator interface {
	CreateJob(ctx context.Context, req parserapi.OrderRequest) error
}

type Submitter struct {
	clients  ClientStore
	products ProductStore
	jobs     SubmitterJobStore
	provider OrderCreator
	now      func() time.Time
}

func NewSubmitter(clients ClientStore, products ProductStore, jobs SubmitterJobStore, provider OrderCreator) *Submitter {
	return &Submitter{
		clients:  clients,
		products: products,
		jobs:     jobs,
		provider: provider,
		now:      time.Now,
	}
}

// Submit requests one price-collection run for the account. Submission is
// idempotent per account: if a non-terminal job already exists its handle is
// returned and no provider-side job is created. A provider failure persists
// nothing, so the caller may simply retry later.
func (s *Submitter) Submit(ctx context.Context, account models.Account) (*models.CollectionJob, error) {
	existing, err := s.jobs.GetActiveByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Printf("Account %d already has active job %s, returning existing handle", account.ID, existing.ID)
		return existing, nil
	}

	client, err := s.clients.GetByID(ctx, account.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if client.ParserAPIKey == nil {
		return nil, fmt.Errorf("client %s has no parser API key", client.ID)
	}

	products, err := s.products.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("no tracked products for account %d", account.ID)
	}

	externalTaskID := newTaskID(client.ID, account.Market, s.now())
	order := parserapi.OrderRequest{
		APIKey:    *client.ParserAPIKey,
		RegionID:  account.Region,
		Market:    account.Market,
		UserLabel: externalTaskID,
		Products:  buildOrderProducts(products, account),
	}

	if err := s.provider.CreateJob(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create provider job: %w", err)
	}

	now := s.now()
	job := models.CollectionJob{
		ID:             uuid.NewString(),
		ClientID:       client.ID,
		AccountID:      account.ID,
		ExternalTaskID: externalTaskID,
		Status:         models.JobStatusSubmitted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, repository.ErrActiveJobExists) {
			// Lost a race against a concurrent submission; the winner's row
			// is the job of record for this account.
			log.Printf("Concurrent submission for account %d, returning winner's handle", account.ID)
			winner, getErr := s.jobs.GetActiveByAccount(ctx, account.ID)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, err
	}

	log.Printf("Submitted job %s (task %s) for client %s account %d with %d products",
		job.ID, externalTaskID, client.ID, account.ID, len(products))
	return &job, nil
}

// newTaskID builds the provider user label: client id, a marketplace letter,
// and a timestamp, e.g. "SEBO20240601120000".
func newTaskID(clientID, market string, now time.Time) string {
	letter := "W"
	if strings.EqualFold(market, "ozon") {
		letter = "O"
	}
	return fmt.Sprintf("%s%s%s", clientID, letter, now.Format("20060102150405"))
}

// buildOrderProducts maps tracked products into order rows. Links that do not
// belong to the account's marketplace are dropped rather than sent.
func buildOrderProducts(products []models.Product, account models.Account) []parserapi.OrderProduct {
	rows := make([]parserapi.OrderProduct, 0, len(products))
	for _, p := range products {
		var links []string
		if p.ProductLink != nil {
			if link := validLink(*p.ProductLink, account.Market); link != "" {
				links = []string{link}
			}
		}
		rows = append(rows, parserapi.OrderProduct{
			Code:      p.ProductCode,
			Name:      p.ProductName,
			LinkSet:   links,
			AccountID: account.AccountID,
		})
	}
	return rows
}

func validLink(link, market string) string {
	lower := strings.ToLower(link)
	switch strings.ToLower(market) {
	case "wb":
		if strings.Contains(lower, "wildberries.ru") || strings.Contains(lower, "wb.ru") {
			return link
		}
	case "ozon":
		if strings.Contains(lower, "ozon.ru") {
			return link
		}
	}
	log.Printf("Product link does not match marketplace %s: %s", market, link)
	return ""
}
