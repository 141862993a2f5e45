package dashboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/schengenwatch/visadash/internal/dom"
	"github.com/schengenwatch/visadash/internal/model"
)

// ErrUnknownField is returned for inputs outside the filter form
var ErrUnknownField = errors.New("unknown filter field")

// KeyEnter is the key that submits the filter form
const KeyEnter = "Enter"

// Refresher re-runs the appointment query
type Refresher interface {
	Refresh(ctx context.Context, q model.FilterQuery) error
}

// FilterController owns the filter form. Its inputs live in the document,
// one <input> per filter field with the field name as id.
type FilterController struct {
	doc       *dom.Document
	refresher Refresher
	log       zerolog.Logger
}

// NewFilterController creates a controller for the form in doc
func NewFilterController(doc *dom.Document, refresher Refresher, log zerolog.Logger) *FilterController {
	return &FilterController{
		doc:       doc,
		refresher: refresher,
		log:       log.With().Str("component", "filter").Logger(),
	}
}

// SetInput writes a form field, as typing into the input would
func (c *FilterController) SetInput(field, value string) error {
	if !model.IsFilterField(field) {
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return c.doc.SetAttr(field, "value", value)
}

// Value reads a form field
func (c *FilterController) Value(field string) string {
	v, _ := c.doc.Attr(field, "value")
	return v
}

// Query builds the filter query from the non-empty fields
func (c *FilterController) Query() model.FilterQuery {
	values := make(map[string]string, len(model.FilterFields))
	for _, f := range model.FilterFields {
		values[f] = c.Value(f)
	}
	return model.NewFilterQuery(values)
}

// Submit refreshes the table with the current form values
func (c *FilterController) Submit(ctx context.Context) error {
	q := c.Query()
	c.log.Debug().Str("query", q.String()).Msg("filter submitted")
	return c.refresher.Refresh(ctx, q)
}

// suggestionPrimer is implemented by refreshers that can load the full
// option lists before the first refresh
type suggestionPrimer interface {
	PrimeSuggestions(ctx context.Context) error
}

// Load runs the page-load sequence: prime the suggestion lists when the
// refresher supports it, then refresh. Priming failures are only logged.
func (c *FilterController) Load(ctx context.Context) error {
	if p, ok := c.refresher.(suggestionPrimer); ok {
		if err := p.PrimeSuggestions(ctx); err != nil {
			c.log.Warn().Err(err).Msg("priming filter suggestions failed")
		}
	}
	return c.Submit(ctx)
}

// HandleKey processes a key pressed inside the form. Enter submits the
// filters and reports the default form submission as prevented.
func (c *FilterController) HandleKey(ctx context.Context, key string) (bool, error) {
	if key != KeyEnter {
		return false, nil
	}
	return true, c.Submit(ctx)
}

// Clear empties every field and refreshes with an empty query
func (c *FilterController) Clear(ctx context.Context) error {
	for _, f := range model.FilterFields {
		if err := c.doc.SetAttr(f, "value", ""); err != nil {
			return err
		}
	}
	c.log.Debug().Msg("filters cleared")
	return c.refresher.Refresh(ctx, model.FilterQuery{})
}
