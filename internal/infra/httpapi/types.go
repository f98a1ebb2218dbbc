package httpapi

import "github.com/google/uuid"

type CreateRequestRequest struct {
	PatientName    string   `json:"patient_name"`
	BloodGroup     string   `json:"blood_group"`
	City           string   `json:"city"`
	HospitalName   string   `json:"hospital_name"`
	RequesterPhone string   `json:"requester_phone"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

type RequestResponse struct {
	ID                uuid.UUID `json:"id"`
	ShortCode         string    `json:"short_code"`
	BloodGroup        string    `json:"blood_group"`
	City              string    `json:"city"`
	Status            string    `json:"status"`
	Type              string    `json:"type"`
	AcceptedResponses int       `json:"accepted_responses"`
}

type PopulateBridgeRequest struct {
	Count     int      `json:"count"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type PopulateBridgeResponse struct {
	MembersAdded int `json:"members_added"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
