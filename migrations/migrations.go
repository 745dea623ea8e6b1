package migrations

import "embed"

// FS содержит SQL-миграции схемы, встроенные в бинарник
//
//go:embed *.sql
var FS embed.FS
