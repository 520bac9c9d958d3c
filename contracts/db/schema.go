package db

import _ "embed"

// Schema 进度引擎所需的全部表结构（幂等，可重复执行）
//
//go:embed schema.sql
var Schema string
