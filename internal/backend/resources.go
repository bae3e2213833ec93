package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"aufgabenclient/internal/models"
)

// ListParams sind die üblichen Filter der Listen-Endpunkte.
// Leere Felder werden nicht übertragen.
type ListParams struct {
	StudentID  models.ID
	Topic      string
	Difficulty int
	Skip       int
	Limit      int
}

func (p ListParams) values() url.Values {
	q := url.Values{}
	if p.StudentID != "" {
		q.Set("student_id", string(p.StudentID))
	}
	if p.Topic != "" {
		q.Set("topic", p.Topic)
	}
	if p.Difficulty > 0 {
		q.Set("difficulty", strconv.Itoa(p.Difficulty))
	}
	if p.Skip > 0 {
		q.Set("skip", strconv.Itoa(p.Skip))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	return q
}

// SearchParams sind die Parameter der Aufgabensuche
type SearchParams struct {
	Query         string
	Topic         string
	DifficultyMin int
	DifficultyMax int
}

func (p SearchParams) values() url.Values {
	q := url.Values{}
	q.Set("q", p.Query)
	if p.Topic != "" {
		q.Set("topic", p.Topic)
	}
	if p.DifficultyMin > 0 {
		q.Set("difficulty_min", strconv.Itoa(p.DifficultyMin))
	}
	if p.DifficultyMax > 0 {
		q.Set("difficulty_max", strconv.Itoa(p.DifficultyMax))
	}
	return q
}

// === Schüler ===

func (c *Client) CreateStudent(ctx context.Context, student *models.Student) (*models.Student, error) {
	var created models.Student
	if err := c.doJSON(ctx, "create student", http.MethodPost, "/api/students/", nil, student, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetStudent(ctx context.Context, id models.ID) (*models.Student, error) {
	var student models.Student
	if err := c.doJSON(ctx, "get student", http.MethodGet, "/api/students/"+escape(id), nil, nil, &student); err != nil {
		return nil, err
	}
	return &student, nil
}

func (c *Client) UpdateStudent(ctx context.Context, id models.ID, student *models.Student) (*models.Student, error) {
	var updated models.Student
	if err := c.doJSON(ctx, "update student", http.MethodPut, "/api/students/"+escape(id), nil, student, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) ListStudents(ctx context.Context, params ListParams) ([]models.Student, error) {
	var students []models.Student
	if err := c.doJSON(ctx, "list students", http.MethodGet, "/api/students/", params.values(), nil, &students); err != nil {
		return nil, err
	}
	return students, nil
}

func (c *Client) CreateProfile(ctx context.Context, studentID models.ID, profile *models.StudentProfile) (*models.StudentProfile, error) {
	var created models.StudentProfile
	path := "/api/students/" + escape(studentID) + "/profile"
	if err := c.doJSON(ctx, "create profile", http.MethodPost, path, nil, profile, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetProfile(ctx context.Context, studentID models.ID) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	path := "/api/students/" + escape(studentID) + "/profile"
	if err := c.doJSON(ctx, "get profile", http.MethodGet, path, nil, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, studentID models.ID, profile *models.StudentProfile) (*models.StudentProfile, error) {
	var updated models.StudentProfile
	path := "/api/students/" + escape(studentID) + "/profile"
	if err := c.doJSON(ctx, "update profile", http.MethodPut, path, nil, profile, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// === Aufträge ===

// GenerateAssignment reicht eine Generierungsanfrage ein
func (c *Client) GenerateAssignment(ctx context.Context, req *models.AssignmentRequest) (*models.GenerateResponse, error) {
	var resp models.GenerateResponse
	if err := c.doJSON(ctx, "generate assignment", http.MethodPost, "/api/assignments/generate", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAssignment liefert einen Schnappschuss des Auftrags
func (c *Client) GetAssignment(ctx context.Context, id models.ID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := c.doJSON(ctx, "get assignment", http.MethodGet, "/api/assignments/"+escape(id), nil, nil, &assignment); err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (c *Client) ListAssignments(ctx context.Context, params ListParams) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := c.doJSON(ctx, "list assignments", http.MethodGet, "/api/assignments/", params.values(), nil, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// DownloadArtifact lädt das PDF einer Rolle als Rohdaten
func (c *Client) DownloadArtifact(ctx context.Context, id models.ID, role models.Role) ([]byte, error) {
	path := "/api/assignments/" + escape(id) + "/download/" + url.PathEscape(string(role))
	return c.doBinary(ctx, "download "+string(role)+" pdf", path)
}

// === Aufgabenbank ===

// ImportTasks startet einen Import. req darf nil sein, dann importiert das Backend sein Datenverzeichnis.
func (c *Client) ImportTasks(ctx context.Context, req *models.ImportTasksRequest) (*models.ImportTasksResponse, error) {
	if req == nil {
		req = &models.ImportTasksRequest{}
	}
	var resp models.ImportTasksResponse
	if err := c.doJSON(ctx, "import tasks", http.MethodPost, "/api/tasks/import", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SearchTasks(ctx context.Context, params SearchParams) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.doJSON(ctx, "search tasks", http.MethodGet, "/api/tasks/search", params.values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetTask(ctx context.Context, id models.ID) (*models.Task, error) {
	var task models.Task
	if err := c.doJSON(ctx, "get task", http.MethodGet, "/api/tasks/"+escape(id), nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (c *Client) ListTasks(ctx context.Context, params ListParams) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.doJSON(ctx, "list tasks", http.MethodGet, "/api/tasks/", params.values(), nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	var created models.Task
	if err := c.doJSON(ctx, "create task", http.MethodPost, "/api/tasks/", nil, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
