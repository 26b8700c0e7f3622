package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation pq.ErrorCode = "23505"

// wrapPQError はlib/pqのエラーを判定し、一意制約違反であればErrUniqueViolationでラップする。
// それ以外はmsgを付与してそのまま返す。
func wrapPQError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", msg, ErrUniqueViolation, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
