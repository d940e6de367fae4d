// Package permission decodes the server's access bitmasks into capabilities
// and derives which feed actions the current user is offered.
package permission

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

type Mask uint32

// Chat access flags.
const (
	DeleteDocument Mask = 4
	DeleteMessage  Mask = 8
	ManageAccess   Mask = 512
)

// Document access flags.
const (
	ViewDocument       Mask = 1
	DownloadDocument   Mask = 2
	DeleteDocumentFile Mask = 4
)

// DocumentFlags lists the per-document capabilities in grant order.
var DocumentFlags = []Mask{ViewDocument, DownloadDocument, DeleteDocumentFile}

var names = map[string]Mask{
	"delete-document": DeleteDocument,
	"delete-message":  DeleteMessage,
	"manage-access":   ManageAccess,
}

var documentNames = map[string]Mask{
	"view":     ViewDocument,
	"download": DownloadDocument,
	"delete":   DeleteDocumentFile,
}

// Has reports whether every bit of flag is set in mask.
func Has(mask, flag Mask) bool {
	return mask&flag == flag
}

// HasAny reports whether mask grants at least one of flags.
func HasAny(mask Mask, flags ...Mask) bool {
	for _, f := range flags {
		if Has(mask, f) {
			return true
		}
	}
	return false
}

// ForUser returns the mask of the rule addressed to userID, or 0.
func ForUser(rules []domain.AccessRule, userID uuid.UUID) Mask {
	for _, r := range rules {
		if r.UserID != nil && *r.UserID == userID {
			return Mask(r.AccessMask)
		}
	}
	return 0
}

// ForRole returns the mask of the rule addressed to roleID, or 0.
func ForRole(rules []domain.AccessRule, roleID uuid.UUID) Mask {
	for _, r := range rules {
		if r.RoleID != nil && *r.RoleID == roleID {
			return Mask(r.AccessMask)
		}
	}
	return 0
}

// Parse turns a chat flag name ("delete-message") or decimal value into a Mask.
func Parse(s string) (Mask, bool) {
	return parse(names, s)
}

// ParseDocument is Parse for document flags ("view", "download", "delete").
func ParseDocument(s string) (Mask, bool) {
	return parse(documentNames, s)
}

func parse(table map[string]Mask, s string) (Mask, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if m, ok := table[s]; ok {
		return m, true
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, false
	}
	return Mask(v), true
}

// CanEdit gates the edit action: own, not yet deleted, messages only.
func CanEdit(item domain.FeedItem, userID uuid.UUID) bool {
	return item.Kind == domain.KindMessage && !item.IsDeleted() && item.SenderID == userID
}

// CanDelete gates the delete action: the sender, or anyone holding the
// delete-any capability for the item's kind.
func CanDelete(item domain.FeedItem, userID uuid.UUID, mask Mask) bool {
	if item.IsDeleted() {
		return false
	}
	if item.SenderID == userID {
		return true
	}
	switch item.Kind {
	case domain.KindMessage:
		return Has(mask, DeleteMessage)
	case domain.KindDocument:
		return Has(mask, DeleteDocument)
	}
	return false
}
