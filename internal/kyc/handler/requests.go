package handler

import (
	"net/http"
	"strconv"

	"kyc-core/internal/kyc/models"
)

type saveDataRequest struct {
	ID                    string            `json:"_id"`
	UID                   int64             `json:"uid"`
	IsMainAccount         *bool             `json:"is_main_account"`
	TypeAccount           string            `json:"type_account"`
	Status                string            `json:"status"`
	Reset                 bool              `json:"reset"`
	Notes                 string            `json:"notes"`
	Notify                *bool             `json:"notify"`
	VerificationTimestamp int64             `json:"verification_timestamp"`
	IsMonitored           *bool             `json:"is_monitored"`
	Sections              map[string]int    `json:"sections"`
	Fields                map[string]string `json:"fields"`
}

func (r saveDataRequest) toModel() *models.SaveRequest {
	return &models.SaveRequest{
		ID:                    r.ID,
		UID:                   r.UID,
		IsMainAccount:         r.IsMainAccount,
		TypeAccount:           r.TypeAccount,
		Status:                r.Status,
		Reset:                 r.Reset,
		Notes:                 r.Notes,
		Notify:                r.Notify,
		VerificationTimestamp: r.VerificationTimestamp,
		IsMonitored:           r.IsMonitored,
		Sections:              r.Sections,
		Fields:                r.Fields,
	}
}

type formsDataRequest struct {
	Token  string          `json:"token"`
	FormID string          `json:"form_id"`
	Data   saveDataRequest `json:"data"`
}

// documentUpload mirrors one saveDocuments array element. Data arrives
// base64-encoded, the encoding/json default for []byte.
type documentUpload struct {
	ID        string `json:"_id"`
	UID       int64  `json:"uid"`
	Data      []byte `json:"data"`
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	Form      string `json:"form"`
	Remark    string `json:"remark"`
	AccountID string `json:"account_id"`
	IsPrivate bool   `json:"is_private"`
}

func toUploads(in []documentUpload) []models.DocumentUpload {
	out := make([]models.DocumentUpload, len(in))
	for i, d := range in {
		out[i] = models.DocumentUpload{
			ID:        d.ID,
			UID:       d.UID,
			Data:      d.Data,
			Filename:  d.Filename,
			Type:      d.Type,
			Form:      d.Form,
			Remark:    d.Remark,
			AccountID: d.AccountID,
			IsPrivate: d.IsPrivate,
		}
	}
	return out
}

type formsDocumentsRequest struct {
	Token     string           `json:"token"`
	FormID    string           `json:"form_id"`
	Documents []documentUpload `json:"documents"`
}

type processRequest struct {
	ID     string `json:"_id"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Notify *bool  `json:"notify"`
}

type logFilterRequest struct {
	UIDs     []int64  `json:"uids"`
	Statuses []string `json:"statuses"`
	Actors   []string `json:"actors"`
	MinWorth int64    `json:"min_worth"`
	MaxWorth int64    `json:"max_worth"`
	Start    int64    `json:"start"`
	End      int64    `json:"end"`
}

func (f logFilterRequest) toModel() models.LogFilter {
	statuses := make([]models.Status, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = models.Status(s)
	}
	if len(statuses) == 0 {
		statuses = nil
	}
	return models.LogFilter{
		UIDs:     f.UIDs,
		Statuses: statuses,
		Actors:   f.Actors,
		MinWorth: f.MinWorth,
		MaxWorth: f.MaxWorth,
		Start:    f.Start,
		End:      f.End,
	}
}

type statusLogsRequest struct {
	Filter logFilterRequest `json:"filter"`
	Unique bool             `json:"unique"`
	Page   pageRequest      `json:"page"`
}

type analyticsRequest struct {
	Type      string           `json:"type"`
	Filter    logFilterRequest `json:"filter"`
	Precision float64          `json:"precision"`
	TimeFrame string           `json:"time_frame"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type pageRequest struct {
	Offset    int    `json:"offset"`
	Amount    int    `json:"amount"`
	Order     string `json:"order"`
	Direction int    `json:"direction"`
}

func (p pageRequest) toModel() models.Page {
	return models.Page{Offset: p.Offset, Amount: p.Amount, Order: p.Order, Direction: p.Direction}
}

// pageFromQuery reads pagination from the URL for the GET surface.
func pageFromQuery(r *http.Request) models.Page {
	q := r.URL.Query()
	page := models.Page{Order: q.Get("order")}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		page.Offset = v
	}
	if v, err := strconv.Atoi(q.Get("amount")); err == nil {
		page.Amount = v
	}
	if v, err := strconv.Atoi(q.Get("direction")); err == nil {
		page.Direction = v
	}
	return page
}
