package comparison

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nextcoretech/procurement-backend/internal/documents"
	"github.com/nextcoretech/procurement-backend/pkg/db/models"
	"github.com/nextcoretech/procurement-backend/pkg/enums"
	pkgerrors "github.com/nextcoretech/procurement-backend/pkg/errors"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
)

// QuotationTotal is one quotation's position in the total-amount ranking.
type QuotationTotal struct {
	DocNo      string          `json:"doc_no"`
	Supplier   string          `json:"supplier"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Rank       int             `json:"rank"`
}

// ItemQuote is one supplier's offer for a single item.
type ItemQuote struct {
	DocNo    string          `json:"doc_no"`
	Supplier string          `json:"supplier"`
	Qty      decimal.Decimal `json:"qty"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// ItemComparison lines up every quote received for one RFQ item.
type ItemComparison struct {
	ItemCode    string          `json:"item_code"`
	ItemName    string          `json:"item_name"`
	BestRate    decimal.Decimal `json:"best_rate"`
	AverageRate decimal.Decimal `json:"average_rate"`
	// Winner names the quotation offering the lowest rate; empty when no
	// quotation covered the item.
	Winner string      `json:"winner,omitempty"`
	Quotes []ItemQuote `json:"quotes"`
}

// Result is the full comparison sheet for an RFQ.
type Result struct {
	RFQNo    string           `json:"rfq_no"`
	Currency string           `json:"currency"`
	Totals   []QuotationTotal `json:"totals"`
	Items    []ItemComparison `json:"items"`
	// TotalWinner has the lowest grand total; ItemWiseWinner won the most
	// per-item comparisons.
	TotalWinner    *QuotationTotal `json:"total_winner,omitempty"`
	ItemWiseWinner *QuotationTotal `json:"item_wise_winner,omitempty"`
}

// AwardInput turns a chosen quotation into a draft purchase order.
type AwardInput struct {
	QuotationNo string   `json:"quotation_no"`
	DocNo       string   `json:"doc_no"`
	ItemCodes   []string `json:"item_codes"`
}

// Service ranks the submitted quotations under an RFQ and awards the winner.
type Service interface {
	WithTx(tx *gorm.DB) Service

	Compare(ctx context.Context, rfqNo string) (*Result, error)
	Award(ctx context.Context, input AwardInput) (*documents.View, error)
}

type service struct {
	repo Repository
	docs documents.Service
	logg *logger.Logger
}

// NewService wires the comparison service.
func NewService(repo Repository, docs documents.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("comparison repository required")
	}
	if docs == nil {
		return nil, fmt.Errorf("documents service required")
	}
	return &service{repo: repo, docs: docs, logg: logg}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), docs: s.docs, logg: s.logg}
}

func (s *service) Compare(ctx context.Context, rfqNo string) (*Result, error) {
	rfq, err := s.repo.GetRFQ(ctx, rfqNo)
	if err != nil {
		return nil, err
	}
	if rfq == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("rfq %s not found", rfqNo))
	}

	quotations, err := s.repo.ListQuotations(ctx, rfqNo)
	if err != nil {
		return nil, err
	}
	if len(quotations) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("rfq %s has no submitted quotations to compare", rfqNo))
	}

	result := &Result{
		RFQNo:    rfqNo,
		Currency: rfq.Currency,
		Totals:   rankByTotal(quotations),
		Items:    compareItems(rfq, quotations),
	}
	result.TotalWinner = &result.Totals[0]
	result.ItemWiseWinner = itemWiseWinner(result.Totals, result.Items)
	return result, nil
}

// Award drafts a purchase order from the chosen quotation, optionally for a
// subset of its items. The quotation must be submitted.
func (s *service) Award(ctx context.Context, input AwardInput) (*documents.View, error) {
	view, err := s.docs.Get(ctx, enums.DocKindSupplierQuotation, input.QuotationNo)
	if err != nil {
		return nil, err
	}
	if view.Status != enums.DocStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("quotation %s is %s, only a submitted quotation can be awarded", input.QuotationNo, view.Status))
	}

	po, err := s.docs.CreateFromSource(ctx, documents.FromSourceInput{
		SourceKind: enums.DocKindSupplierQuotation,
		SourceNo:   input.QuotationNo,
		TargetKind: enums.DocKindPurchaseOrder,
		DocNo:      input.DocNo,
		ItemCodes:  input.ItemCodes,
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithDocRef(ctx, string(po.Kind), po.DocNo),
			fmt.Sprintf("quotation %s awarded", input.QuotationNo))
	}
	return po, nil
}

func supplierOf(doc models.Document) string {
	if doc.Supplier == nil {
		return ""
	}
	return *doc.Supplier
}

// rankByTotal orders quotations by grand total ascending, breaking ties by
// submission order and then doc number so the ranking is deterministic.
func rankByTotal(quotations []models.Document) []QuotationTotal {
	totals := make([]QuotationTotal, 0, len(quotations))
	createdAt := make(map[string]int, len(quotations))
	for i, quotation := range quotations {
		createdAt[quotation.DocNo] = i
		totals = append(totals, QuotationTotal{
			DocNo:      quotation.DocNo,
			Supplier:   supplierOf(quotation),
			GrandTotal: quotation.GrandTotal(),
		})
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if !totals[i].GrandTotal.Equal(totals[j].GrandTotal) {
			return totals[i].GrandTotal.LessThan(totals[j].GrandTotal)
		}
		if createdAt[totals[i].DocNo] != createdAt[totals[j].DocNo] {
			return createdAt[totals[i].DocNo] < createdAt[totals[j].DocNo]
		}
		return totals[i].DocNo < totals[j].DocNo
	})
	for i := range totals {
		totals[i].Rank = i + 1
	}
	return totals
}

// compareItems walks the RFQ's item lines in order and lines up each
// quotation's offer. Quotations that skip an item simply do not appear in
// that row.
func compareItems(rfq *models.Document, quotations []models.Document) []ItemComparison {
	items := make([]ItemComparison, 0, len(rfq.Items))
	for _, line := range rfq.Items {
		row := ItemComparison{ItemCode: line.ItemCode, ItemName: line.ItemName}

		sum := decimal.Zero
		for _, quotation := range quotations {
			for _, offer := range quotation.Items {
				if offer.ItemCode != line.ItemCode {
					continue
				}
				quote := ItemQuote{
					DocNo:    quotation.DocNo,
					Supplier: supplierOf(quotation),
					Qty:      offer.Qty,
					Rate:     offer.Rate,
					Amount:   offer.Amount(),
				}
				if row.Winner == "" || quote.Rate.LessThan(row.BestRate) {
					row.BestRate = quote.Rate
					row.Winner = quote.DocNo
				}
				sum = sum.Add(quote.Rate)
				row.Quotes = append(row.Quotes, quote)
				break
			}
		}
		if len(row.Quotes) > 0 {
			row.AverageRate = sum.Div(decimal.NewFromInt(int64(len(row.Quotes)))).Round(6)
		}
		items = append(items, row)
	}
	return items
}

// itemWiseWinner picks the quotation that won the most item rows, breaking
// ties by the total ranking.
func itemWiseWinner(totals []QuotationTotal, items []ItemComparison) *QuotationTotal {
	wins := map[string]int{}
	for _, item := range items {
		if item.Winner != "" {
			wins[item.Winner]++
		}
	}
	if len(wins) == 0 {
		return nil
	}

	// totals is already ordered by grand total then submission order, so the
	// first entry with the highest win count is the tie-broken winner.
	best := -1
	var winner *QuotationTotal
	for i := range totals {
		if wins[totals[i].DocNo] > best {
			best = wins[totals[i].DocNo]
			winner = &totals[i]
		}
	}
	return winner
}
