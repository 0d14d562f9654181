package mysql

import (
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && me.Number == errDuplicateEntry
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
