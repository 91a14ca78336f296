package repository

import "errors"

var ErrNotFound = errors.New("not found")

// 楽観ロックの競合（versionが古い / 予約が既に動いた / 同時作成）
var ErrVersionConflict = errors.New("version conflict")
