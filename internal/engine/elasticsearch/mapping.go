package elasticsearch

import (
	"encoding/json"

	"github.com/utafrali/marketsearch/internal/domain"
)

// facetAggSize bounds the number of buckets returned per facet.
const facetAggSize = 100

func keyword() clause { return clause{"type": "keyword"} }

func stored() clause { return clause{"type": "keyword", "index": false} }

func text() clause { return clause{"type": "text"} }

// title is searchable as words, as typed prefixes and as an exact keyword.
func title() clause {
	return clause{
		"type": "text",
		"fields": clause{
			"keyword": clause{"type": "keyword", "ignore_above": 256},
			"autocomplete": clause{
				"type":            "text",
				"analyzer":        "autocomplete_analyzer",
				"search_analyzer": "autocomplete_search",
			},
		},
	}
}

func analysis() clause {
	folding := []string{"lowercase", "asciifolding"}
	return clause{
		"analyzer": clause{
			"autocomplete_analyzer": clause{"type": "custom", "tokenizer": "autocomplete_tokenizer", "filter": folding},
			"autocomplete_search":   clause{"type": "custom", "tokenizer": "standard", "filter": folding},
		},
		"tokenizer": clause{
			"autocomplete_tokenizer": clause{
				"type":        "edge_ngram",
				"min_gram":    2,
				"max_gram":    20,
				"token_chars": []string{"letter", "digit"},
			},
		},
	}
}

// properties maps the document attributes of mode. Facet attributes are
// keywords so they back terms filters and aggregations.
func properties(mode domain.Mode) clause {
	if mode == domain.ModeSuppliers {
		return clause{
			domain.FieldID:           keyword(),
			"title":                  title(),
			"description":            text(),
			"country":                keyword(),
			"city":                   keyword(),
			"location":               text(),
			"source_id":              keyword(),
			domain.FieldProductCount: clause{"type": "long"},
			"product_keywords":       text(),
		}
	}
	return clause{
		domain.FieldID:         keyword(),
		"title":                title(),
		"price":                keyword(),
		domain.FieldPriceValue: clause{"type": "scaled_float", "scaling_factor": 100},
		"image":                stored(),
		"url":                  stored(),
		"moq":                  keyword(),
		"country":              keyword(),
		"category":             keyword(),
		"supplier_name":        clause{"type": "text", "fields": clause{"keyword": keyword()}},
		"source_name":          keyword(),
	}
}

// buildIndexMapping returns the create-index body for mode.
func buildIndexMapping(mode domain.Mode) string {
	body, _ := json.Marshal(clause{
		"settings": clause{
			"number_of_shards":   1,
			"number_of_replicas": 0,
			"analysis":           analysis(),
		},
		"mappings": clause{"properties": properties(mode)},
	})
	return string(body)
}

// searchFields returns the weighted full-text fields for mode.
func searchFields(mode domain.Mode) []string {
	if mode == domain.ModeSuppliers {
		return []string{"title^3", "title.autocomplete^2", "product_keywords^2", "description", "city", "country"}
	}
	return []string{"title^3", "title.autocomplete^2", "category", "supplier_name", "source_name"}
}
