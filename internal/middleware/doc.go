// Package middleware 提供了 HTTP 請求處理的中間件。
//
// 目前包含請求日誌記錄和 panic 恢復，兩者都把信息寫入結構化日誌。
package middleware
