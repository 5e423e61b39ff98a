package model

import (
	"io"
	"strconv"
	"strings"

	ierr "go-firestore-admin/internal/errors"

	"github.com/shopspring/decimal"
)

func init() {
	// price goes over the wire as a JSON number, the same shape as the stored field
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	Id       string          `firestore:"-" json:"id"` // document key, never stored as a field
	Name     string          `firestore:"name" json:"name"`
	Category string          `firestore:"category" json:"category"`
	Price    decimal.Decimal `firestore:"price" json:"price"`
	Stock    int             `firestore:"stock" json:"stock"`
	Sales    int             `firestore:"sales" json:"sales"`
	ImgUrl   *string         `firestore:"imgUrl,omitempty" json:"imgUrl,omitempty"`
}

// Fields returns the persisted document shape of the product.
func (p Product) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"name":     p.Name,
		"category": p.Category,
		"price":    p.Price.InexactFloat64(),
		"stock":    p.Stock,
		"sales":    p.Sales,
	}
	if p.HasImage() {
		fields["imgUrl"] = *p.ImgUrl
	}
	return fields
}

func (p Product) HasImage() bool {
	return p.ImgUrl != nil && *p.ImgUrl != ""
}

// ImageFile is an image attached to a draft. OnProgress, when set, receives upload percentages.
type ImageFile struct {
	Filename   string
	Size       int64
	Content    io.Reader
	OnProgress func(percent float64)
}

// ProductDraft holds unvalidated form input.
type ProductDraft struct {
	Name     string
	Category string
	Price    string
	Stock    string
	Sales    string
	Image    *ImageFile
}

// Parse validates the draft and converts it to a Product without id or image.
// Every invalid field is reported in a single *errors.ValidationError.
func (d ProductDraft) Parse() (Product, error) {
	verr := ierr.NewValidationError()
	p := Product{
		Name:     strings.TrimSpace(d.Name),
		Category: strings.TrimSpace(d.Category),
	}

	if p.Name == "" {
		verr.Add("name", "must not be empty")
	}
	if p.Category == "" {
		verr.Add("category", "must not be empty")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(d.Price))
	switch {
	case err != nil:
		verr.Add("price", "must be a number")
	case price.IsNegative():
		verr.Add("price", "must not be negative")
	default:
		p.Price = price
	}

	p.Stock = parseCount(verr, "stock", d.Stock)
	p.Sales = parseCount(verr, "sales", d.Sales)

	if d.Image != nil && d.Image.Content == nil {
		verr.Add("image", "has no content")
	}

	if !verr.Empty() {
		return Product{}, verr
	}
	return p, nil
}

func parseCount(verr *ierr.ValidationError, field, raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		verr.Add(field, "must be an integer")
		return 0
	}
	if n < 0 {
		verr.Add(field, "must not be negative")
		return 0
	}
	return n
}
