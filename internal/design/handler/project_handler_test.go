package handler

import (
	"net/http"
	"testing"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/testutil"
)

func TestProjectTaskDeliverableFlow(t *testing.T) {
	env := setupDesignTest(t)
	token := testutil.AdminToken()

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/projects", map[string]interface{}{
		"name": "Riverside Clinic", "client_id": "client-001", "start_date": "2024-01-08", "end_date": "2024-12-20",
	}, token)
	expectStatus(t, w, http.StatusCreated)
	projectID := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects", map[string]interface{}{
		"name": "Backwards", "start_date": "2024-05-01", "end_date": "2024-01-01",
	}, token)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/"+projectID+"/deliverables", map[string]interface{}{
		"name": "Permit set", "number": "D-100",
	}, token)
	expectStatus(t, w, http.StatusCreated)
	deliverableID := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/"+projectID+"/tasks", map[string]interface{}{
		"name": "Site plan", "deliverable_id": deliverableID, "due_date": "2024-03-01",
	}, token)
	expectStatus(t, w, http.StatusCreated)
	taskID := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/tasks/"+taskID+"/status", map[string]interface{}{"status": "done"}, token)
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/tasks/"+taskID+"/status",
		map[string]interface{}{"status": entity.TaskStatusCompleted}, token)
	expectStatus(t, w, http.StatusOK)
	change := testutil.Data(t, w)["change"].(map[string]interface{})
	if dl, ok := change["deliverable"].(map[string]interface{}); !ok || dl["to"] != entity.DeliverableStatusCompleted {
		t.Errorf("Expected deliverable completed, got %v", change["deliverable"])
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/projects/"+projectID+"/deliverables", nil, token)
	expectStatus(t, w, http.StatusOK)
	items := testutil.Data(t, w)["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["status"] != entity.DeliverableStatusCompleted {
		t.Errorf("Unexpected deliverables %v", items)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/deliverables/"+deliverableID+"/recompute", nil, token)
	expectStatus(t, w, http.StatusOK)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/deliverables/missing/recompute", nil, token)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/tasks/missing/status",
		map[string]interface{}{"status": entity.TaskStatusCompleted}, token)
	expectStatus(t, w, http.StatusNotFound)
}

func TestRFIFlowOverHTTP(t *testing.T) {
	env := setupDesignTest(t)
	testutil.SeedProject(t, env.DB, "proj-001")

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/rfis", map[string]interface{}{
		"project_id": "proj-001",
		"title":      "Door schedule conflict",
		"priority":   "high",
		"sent_to":    "expert-001",
	}, testutil.DesignerToken())
	expectStatus(t, w, http.StatusCreated)
	rfiID := testutil.Data(t, w)["id"].(string)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users/expert-001/rfis", nil, testutil.ExpertToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(1) {
		t.Errorf("Expected 1 RFI, got %v", total)
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/rfis/"+rfiID+"/resolve",
		map[string]interface{}{"resolution": "Follow the architectural schedule"}, testutil.ExpertToken())
	expectStatus(t, w, http.StatusOK)
	if by := testutil.Data(t, w)["resolved_by"]; by != "expert-001" {
		t.Errorf("Expected resolver from token, got %v", by)
	}

	w = testutil.DoRequest(env.Router, "PUT", "/api/v1/rfis/"+rfiID+"/resolve",
		map[string]interface{}{"resolution": "again"}, testutil.ExpertToken())
	expectStatus(t, w, http.StatusConflict)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/projects/proj-001/rfis?status=resolved", nil, testutil.DesignerToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(1) {
		t.Errorf("Expected 1 resolved RFI, got %v", total)
	}
}

func TestProjectListingsAndTeam(t *testing.T) {
	env := setupDesignTest(t)
	token := testutil.AdminToken()

	create := func(name, clientID string) string {
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/projects", map[string]interface{}{
			"name": name, "client_id": clientID,
		}, token)
		expectStatus(t, w, http.StatusCreated)
		return testutil.Data(t, w)["id"].(string)
	}
	clinic := create("Riverside Clinic", "client-001")
	school := create("Hillside School", "client-002")
	create("Depot", "")

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/projects", nil, testutil.DesignerToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(3) {
		t.Errorf("Expected 3 projects, got %v", total)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/clients/client-001/projects", nil, testutil.ClientToken())
	expectStatus(t, w, http.StatusOK)
	items := testutil.Data(t, w)["items"].([]interface{})
	if len(items) != 1 || items[0].(map[string]interface{})["id"] != clinic {
		t.Errorf("Expected only the clinic for client-001, got %v", items)
	}

	for _, body := range []map[string]interface{}{
		{"name": "Site plan", "assignee_id": "designer-001", "due_date": "2024-03-01"},
		{"name": "Sections", "assignee_id": "designer-001"},
		{"name": "Survey", "assignee_id": "expert-001"},
	} {
		w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/"+clinic+"/tasks", body, token)
		expectStatus(t, w, http.StatusCreated)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users/designer-001/tasks", nil, testutil.DesignerToken())
	expectStatus(t, w, http.StatusOK)
	tasks := testutil.Data(t, w)["items"].([]interface{})
	if len(tasks) != 2 || tasks[0].(map[string]interface{})["name"] != "Site plan" {
		t.Errorf("Expected the designer's 2 tasks, dated first, got %v", tasks)
	}

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users/designer-001/tasks?status=done", nil, testutil.DesignerToken())
	expectStatus(t, w, http.StatusBadRequest)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/"+school+"/team", map[string]interface{}{
		"user_id": "designer-001", "designation": "Architect",
	}, token)
	expectStatus(t, w, http.StatusCreated)
	if status := testutil.Data(t, w)["status"]; status != entity.TeamStatusInternal {
		t.Errorf("Expected default team status, got %v", status)
	}

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/"+school+"/team", map[string]interface{}{
		"user_id": "designer-001",
	}, token)
	expectStatus(t, w, http.StatusConflict)

	w = testutil.DoRequest(env.Router, "POST", "/api/v1/projects/missing/team", map[string]interface{}{
		"user_id": "designer-001",
	}, token)
	expectStatus(t, w, http.StatusNotFound)

	w = testutil.DoRequest(env.Router, "GET", "/api/v1/projects/"+school+"/team", nil, testutil.ExpertToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(1) {
		t.Errorf("Expected 1 team member, got %v", total)
	}

	// assigned through tasks on the clinic and through the team on the school
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users/designer-001/projects", nil, testutil.DesignerToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(2) {
		t.Errorf("Expected 2 assigned projects, got %v", total)
	}
	w = testutil.DoRequest(env.Router, "GET", "/api/v1/users/expert-001/projects", nil, testutil.ExpertToken())
	expectStatus(t, w, http.StatusOK)
	if total := testutil.Data(t, w)["total"]; total != float64(1) {
		t.Errorf("Expected 1 assigned project, got %v", total)
	}
}
