package firestore

import (
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/platform/pagination"
)

const createdAtField = "createdAt"

type pageWindow struct {
	size   int
	cursor pagination.Cursor
}

func newPageWindow(pager domain.Pagination) (pageWindow, error) {
	size := pager.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	if size > pagination.DefaultMaxPageSize {
		size = pagination.DefaultMaxPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return pageWindow{}, err
	}
	return pageWindow{size: size, cursor: cursor}, nil
}

// apply orders newest first and fetches one extra document to detect a further page.
func (w pageWindow) apply(query firestore.Query) firestore.Query {
	query = query.OrderBy(createdAtField, firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
	if !w.cursor.IsZero() {
		query = query.StartAfter(w.cursor.CreatedAt, w.cursor.ID)
	}
	return query.Limit(w.size + 1)
}

func collectPage[D any, T any](w pageWindow, docs []pfirestore.Document[D], createdAt func(D) time.Time, convert func(string, D) T) domain.CursorPage[T] {
	page := domain.CursorPage[T]{Items: make([]T, 0, min(len(docs), w.size))}
	for i, doc := range docs {
		if i == w.size {
			last := docs[i-1]
			page.NextPageToken = pagination.EncodeToken(pagination.Cursor{CreatedAt: createdAt(last.Data), ID: last.ID})
			break
		}
		page.Items = append(page.Items, convert(doc.ID, doc.Data))
	}
	return page
}

func statusStrings[S ~string](values []S) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, string(value))
		}
	}
	return out
}
