package api

import "travelbuddy-api/domain"

const mutationMaxSize = 64 * 1024 // 64 KiB

// POST /api/checklists and PUT /api/checklists/:id request body.
type checklistRequest struct {
	Title    string          `json:"title"`
	Category domain.Category `json:"type"`
	Items    []domain.Item   `json:"items"`
}

// POST /api/checklists/:id/collaborators request body.
type collaboratorRequest struct {
	Identity string `json:"identity"`
}

type checklistsResponse struct {
	Checklists []domain.Checklist `json:"checklists"`
	Revision   domain.Revision    `json:"revision"`
}

type checklistResponse struct {
	Checklist domain.Checklist `json:"checklist"`
	Revision  domain.Revision  `json:"revision"`
}

type collaboratorsResponse struct {
	SharedWith []string        `json:"sharedWith"`
	Revision   domain.Revision `json:"revision"`
}

type revisionResponse struct {
	Revision domain.Revision `json:"revision"`
}

type errorResponse struct {
	Error string `json:"error"`
}
