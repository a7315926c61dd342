package handler

import (
	"time"

	"kyc-core/internal/kyc/models"
	"kyc-core/internal/kyc/service"
)

type logEntryResponse struct {
	Actor       string        `json:"actor"`
	Status      models.Status `json:"status"`
	UID         int64         `json:"uid"`
	Notes       string        `json:"notes,omitempty"`
	NetWorthUSD int64         `json:"net_worth_usd"`
	Date        time.Time     `json:"date"`
	Timestamp   int64         `json:"timestamp"`
}

func toLogResponses(entries []models.StatusLogEntry) []logEntryResponse {
	out := make([]logEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = logEntryResponse{
			Actor:       e.Actor,
			Status:      e.Status,
			UID:         e.UID,
			Notes:       e.Notes,
			NetWorthUSD: e.NetWorthUSD,
			Date:        e.Date,
			Timestamp:   e.Timestamp,
		}
	}
	return out
}

type adminCheckResponse struct {
	ID             string `json:"_id"`
	CaseID         string `json:"case_id"`
	Admin          string `json:"admin"`
	OpenTimestamp  int64  `json:"open_ts"`
	SavedTimestamp int64  `json:"saved_ts,omitempty"`
}

type checkEditResponse struct {
	OwnID string              `json:"_id"`
	Check *adminCheckResponse `json:"check,omitempty"`
	Saved *adminCheckResponse `json:"saved,omitempty"`
}

func toCheckEditResponse(res *service.CheckEditResult) checkEditResponse {
	return checkEditResponse{
		OwnID: res.OwnID,
		Check: toAdminCheckResponse(res.Check),
		Saved: toAdminCheckResponse(res.Saved),
	}
}

func toAdminCheckResponse(c *models.AdminCheck) *adminCheckResponse {
	if c == nil {
		return nil
	}
	return &adminCheckResponse{
		ID:             c.ID,
		CaseID:         c.CaseID,
		Admin:          c.Admin,
		OpenTimestamp:  c.OpenTimestamp,
		SavedTimestamp: c.SavedTimestamp,
	}
}

type verifiedResponse struct {
	Verified bool `json:"verified"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
	Level int    `json:"level"`
}

type errorResponse struct {
	Error string `json:"error"`
}
