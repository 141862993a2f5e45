package dashboard

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/schengenwatch/visadash/internal/dom"
)

// ModalIDPrefix starts the id of every detail-log container
const ModalIDPrefix = "logsModal-"

// FragmentSource serves the rendered detail-log fragment of an appointment
type FragmentSource interface {
	LogsModal(ctx context.Context, appointmentID int64) (string, error)
}

// DetailView shows the check history of one appointment in a modal
// container appended to the page body. At most one container is open.
type DetailView struct {
	src FragmentSource
	doc *dom.Document
	log zerolog.Logger

	mu     sync.Mutex
	openID string
}

// NewDetailView creates a detail view rendering into doc
func NewDetailView(src FragmentSource, doc *dom.Document, log zerolog.Logger) *DetailView {
	return &DetailView{
		src: src,
		doc: doc,
		log: log.With().Str("component", "detail").Logger(),
	}
}

// Open fetches the fragment for appointmentID and shows it in a new
// container. A container that is still open is removed first. The
// container id is returned for Dismiss.
func (v *DetailView) Open(ctx context.Context, appointmentID int64) (string, error) {
	fragment, err := v.src.LogsModal(ctx, appointmentID)
	if err != nil {
		v.log.Error().Err(err).Int64("appointment_id", appointmentID).Msg("fetching detail logs failed")
		return "", err
	}
	nodes, err := dom.ParseFragment(fragment)
	if err != nil {
		return "", errors.Wrap(err, "parse detail fragment")
	}

	id := ModalIDPrefix + uuid.NewString()
	container := dom.Element("div",
		"id", id,
		"class", "modal show",
		"tabindex", "-1",
		"role", "dialog",
		"data-appointment-id", strconv.FormatInt(appointmentID, 10),
	)
	dom.Append(container, dismissForm(id))
	dom.Append(container, nodes...)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.openID != "" {
		v.doc.Remove(v.openID)
		v.openID = ""
	}
	if err := v.doc.AppendToBody(container); err != nil {
		return "", err
	}
	v.openID = id
	v.log.Debug().Int64("appointment_id", appointmentID).Str("modal", id).Msg("detail logs opened")
	return id, nil
}

// Dismiss removes the container with id. It reports whether a container
// was removed; ids outside the modal namespace are ignored.
func (v *DetailView) Dismiss(id string) bool {
	if !strings.HasPrefix(id, ModalIDPrefix) {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := v.doc.Remove(id)
	if id == v.openID {
		v.openID = ""
	}
	return removed
}

// OpenID returns the id of the open container, or ""
func (v *DetailView) OpenID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.openID
}

func dismissForm(id string) *html.Node {
	form := dom.Element("form",
		"method", "post",
		"action", "/dashboard/modals/"+id+"/dismiss",
		"class", "modal-dismiss")
	return dom.Append(form, dom.Element("button",
		"type", "submit",
		"class", "btn-close",
		"aria-label", "Close"))
}
