package api

import "kanban-board/domain"

const postBodyMaxSize = 16 * 1024 // 16 KiB

// POST /api/session request body
type sessionRequest struct {
	DisplayName string `json:"displayName"`
}

// POST /api/board/tasks and /api/board/tasks/delete request body
type taskRequest struct {
	Text string `json:"text"`
}

// POST /api/board/tasks/move request body
type moveRequest struct {
	Text string `json:"text"`
	List string `json:"list"`
}

// Board response body, also the payload of every stream event.
type boardResponse struct {
	Username        string       `json:"username"`
	Tasks           []string     `json:"tasks"`
	InProgressTasks []string     `json:"inProgressTasks"`
	CompletedTasks  []string     `json:"completedTasks"`
	IsLight         bool         `json:"isLight"`
	Theme           domain.Theme `json:"theme"`
}

func newBoardResponse(s domain.Snapshot) boardResponse {
	doc := s.Document()
	return boardResponse{
		Username:        doc.Username,
		Tasks:           doc.Tasks,
		InProgressTasks: doc.InProgressTasks,
		CompletedTasks:  doc.CompletedTasks,
		IsLight:         doc.IsLight,
		Theme:           s.Theme(),
	}
}
