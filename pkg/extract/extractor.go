package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"imgharvest/pkg/config"
	errs "imgharvest/pkg/errors"
	"imgharvest/pkg/logger"
)

// ImageRecord is one image card found on a listing page
type ImageRecord struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
}

// Extractor pulls ImageRecords out of listing markup using CSS selectors.
type Extractor struct {
	cardSelector  string
	titleSelector string
	imageSelector string
	imageAttr     string
	base          *url.URL
	logger        logger.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithBaseURL makes the extractor resolve relative image URLs against base.
// An unparsable base is ignored.
func WithBaseURL(base string) Option {
	return func(e *Extractor) {
		if base == "" {
			return
		}
		if u, err := url.Parse(base); err == nil && u.IsAbs() {
			e.base = u
		}
	}
}

// WithLogger sets the logger used to report skipped cards
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Extractor from the extract section of the configuration.
// Empty selectors fall back to the defaults.
func New(cfg config.ExtractConfig, opts ...Option) *Extractor {
	defaults := config.DefaultConfig().Extract

	e := &Extractor{
		cardSelector:  firstNonEmpty(cfg.CardSelector, defaults.CardSelector),
		titleSelector: firstNonEmpty(cfg.TitleSelector, defaults.TitleSelector),
		imageSelector: firstNonEmpty(cfg.ImageSelector, defaults.ImageSelector),
		imageAttr:     firstNonEmpty(cfg.ImageAttr, defaults.ImageAttr),
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}
	if !cfg.ResolveURLs {
		e.base = nil
	}

	return e
}

// Extract returns one record per well-formed card, in document order.
// Cards without an image URL are skipped. No matching cards is not an error.
func (e *Extractor) Extract(html string) ([]ImageRecord, error) {
	// goquery treats an invalid selector as matching nothing
	if err := e.checkSelectors(); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Parse("parse listing", err)
	}

	records := make([]ImageRecord, 0)
	skipped := 0

	doc.Find(e.cardSelector).Each(func(i int, card *goquery.Selection) {
		raw, _ := card.Find(e.imageSelector).First().Attr(e.imageAttr)
		src := strings.TrimSpace(NormalizeURL(strings.TrimSpace(raw)))
		if src == "" {
			skipped++
			return
		}

		records = append(records, ImageRecord{
			Title:     strings.TrimSpace(card.Find(e.titleSelector).First().Text()),
			SourceURL: e.resolve(src),
		})
	})

	if skipped > 0 {
		e.logger.DebugWithFields("skipped cards without an image", map[string]interface{}{
			"skipped": skipped,
			"records": len(records),
		})
	}

	return records, nil
}

func (e *Extractor) checkSelectors() error {
	for _, sel := range []string{e.cardSelector, e.titleSelector, e.imageSelector} {
		if _, err := cascadia.Compile(sel); err != nil {
			return errs.Parse("compile selector", fmt.Errorf("%q: %w", sel, err))
		}
	}
	return nil
}

func (e *Extractor) resolve(raw string) string {
	if e.base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	return e.base.ResolveReference(ref).String()
}

// NormalizeURL strips the CDN resize suffix, everything from the first '!'.
func NormalizeURL(raw string) string {
	if i := strings.IndexByte(raw, '!'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
