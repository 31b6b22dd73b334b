// Package api 處理 HTTP 請求路由和處理。
//
// 這個包把 WebSocket 入口、文件上傳、只讀查詢接口和指標端點掛到 gin 路由上，
// 實際邏輯都在 service 包中。
package api
