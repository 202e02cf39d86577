package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/utafrali/marketsearch/internal/domain"
)

// document is a raw hit keyed by attribute. Attributes are read one by one,
// so a value of an unexpected type only loses that attribute.
type document map[string]json.RawMessage

func parseDocument(raw []byte) (document, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// text reads field as a string. Numbers and booleans keep their literal
// form; null, objects and arrays read as absent.
func (d document) text(field string) *string {
	v := bytes.TrimSpace(d[field])
	if len(v) == 0 {
		return nil
	}
	switch v[0] {
	case '"':
		var s string
		if json.Unmarshal(v, &s) != nil {
			return nil
		}
		return &s
	case 't', 'f':
		var b bool
		if json.Unmarshal(v, &b) != nil {
			return nil
		}
		s := strconv.FormatBool(b)
		return &s
	case 'n', '{', '[':
		return nil
	}
	var n json.Number
	if json.Unmarshal(v, &n) != nil {
		return nil
	}
	s := n.String()
	return &s
}

// count reads field as a whole number, from a JSON number or a numeric
// string. Fractions and anything else read as absent.
func (d document) count(field string) *int64 {
	s := d.text(field)
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func (d document) id(fallback string) string {
	if s := d.text(domain.FieldID); s != nil && *s != "" {
		return *s
	}
	return fallback
}

// DecodeProduct decodes a raw product document. fallbackID is used when the
// document carries no id attribute. Only a document that is not a JSON
// object is an error.
func DecodeProduct(raw []byte, fallbackID string) (domain.ProductHit, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return domain.ProductHit{}, fmt.Errorf("decode product hit: %w", err)
	}
	return domain.ProductHit{
		ID:           doc.id(fallbackID),
		Title:        doc.text(domain.FieldTitle),
		Price:        doc.text(domain.FieldPrice),
		Image:        doc.text(domain.FieldImage),
		URL:          doc.text(domain.FieldURL),
		MOQ:          doc.text(domain.FieldMOQ),
		Country:      doc.text(domain.FieldCountry),
		Category:     doc.text(domain.FieldCategory),
		SupplierName: doc.text(domain.FieldSupplierName),
		SourceName:   doc.text(domain.FieldSourceName),
	}, nil
}

// DecodeSupplier decodes a raw supplier document. fallbackID is used when the
// document carries no id attribute.
func DecodeSupplier(raw []byte, fallbackID string) (domain.SupplierHit, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return domain.SupplierHit{}, fmt.Errorf("decode supplier hit: %w", err)
	}
	return domain.SupplierHit{
		ID:              doc.id(fallbackID),
		Title:           doc.text(domain.FieldTitle),
		Description:     doc.text(domain.FieldDescription),
		Country:         doc.text(domain.FieldCountry),
		City:            doc.text(domain.FieldCity),
		Location:        doc.text(domain.FieldLocation),
		SourceID:        doc.text(domain.FieldSourceID),
		ProductCount:    doc.count(domain.FieldProductCount),
		ProductKeywords: doc.text(domain.FieldProductKeywords),
	}, nil
}

// AppendHit decodes raw according to mode and appends it to res.
func AppendHit(res *domain.RawResult, raw []byte, fallbackID string) error {
	if res.Mode == domain.ModeSuppliers {
		hit, err := DecodeSupplier(raw, fallbackID)
		if err != nil {
			return err
		}
		res.Suppliers = append(res.Suppliers, hit)
		return nil
	}
	hit, err := DecodeProduct(raw, fallbackID)
	if err != nil {
		return err
	}
	res.Products = append(res.Products, hit)
	return nil
}

// NewRawResult returns an empty result for mode with non-nil hit slices.
func NewRawResult(mode domain.Mode, capacity int) *domain.RawResult {
	res := &domain.RawResult{
		Mode:              mode,
		FacetDistribution: domain.FacetDistribution{},
	}
	if mode == domain.ModeSuppliers {
		res.Suppliers = make([]domain.SupplierHit, 0, capacity)
	} else {
		res.Products = make([]domain.ProductHit, 0, capacity)
	}
	return res
}
