package repo

import (
	"context"
	"fmt"
	"strings"

	"postgen/internal/domain"
	"postgen/internal/infra"
	"postgen/internal/sqlinline"
)

// ProfileRepositoryPG reads onboarding answers. question1-3 describe the
// business, question4 is the preferred writing style.
type ProfileRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewProfileRepository(sql infra.SQLExecutor) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{sql: sql}
}

// ProfileText renders the answers as the query used for profile retrieval.
func (r *ProfileRepositoryPG) ProfileText(ctx context.Context, userID string) (string, error) {
	var q1, q2, q3, q4 string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectOnboardingAnswers, userID).Scan(&q1, &q2, &q3, &q4); err != nil {
		if infra.IsNoRows(err) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("select onboarding: %w", err)
	}
	q1, q2, q3 = strings.TrimSpace(q1), strings.TrimSpace(q2), strings.TrimSpace(q3)
	if q1 == "" && q2 == "" && q3 == "" {
		return "", domain.ErrNotFound
	}
	return FormatProfile(q1, q2, q3), nil
}

// Style falls back to domain.DefaultStyle on any error.
func (r *ProfileRepositoryPG) Style(ctx context.Context, userID string) string {
	var style string
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectOnboardingStyle, userID).Scan(&style); err != nil {
		return domain.DefaultStyle
	}
	if style = strings.TrimSpace(style); style == "" {
		return domain.DefaultStyle
	}
	return style
}

// FormatProfile is shared with the indexer so queries and documents match.
func FormatProfile(product, customers, problem string) string {
	return fmt.Sprintf("Product/Service: %s. Ideal Customers: %s. Problem Solved: %s.", product, customers, problem)
}

var _ domain.ProfileService = (*ProfileRepositoryPG)(nil)
