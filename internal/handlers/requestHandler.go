package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/akolanti/DocsetAgent/internal/adapter"
	"github.com/akolanti/DocsetAgent/internal/adapter/utils"
	"github.com/akolanti/DocsetAgent/internal/api"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/pkg/logger_i"
)

var logRH = logger_i.NewLogger("RequestHandler")

type newJobData struct {
	id        string
	jobType   jobModel.JobType
	docsetId  string
	chatId    string
	message   string
	mode      string
	isNewChat bool
	traceId   string
}

// GetHandler is the health check.
func GetHandler(w http.ResponseWriter, r *http.Request) {
	writeJsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListDocsetsHandler lists the docsets of the catalog.
//
//	GET /docsets
func ListDocsetsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	docsets, err := handlerInstance.ragService.ListDocsets(r.Context())
	if err != nil {
		logRH.Error("Listing docsets failed", "error", err)
		WriteErrorResponse(w, http.StatusBadGateway, "", "Docset catalog unavailable")
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocsetList(docsets, isIndexed))
}

// IndexDocsetHandler queues a build of the docset index and agent. The body
// is optional, {"mode":"recreate"} drops what was indexed before.
//
//	POST /docsets/{id}/index
func IndexDocsetHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	docsetID := utils.GetChiURLParam(r, "id")
	defer closeBody(r.Body)

	var req api.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteErrorResponse(w, http.StatusBadRequest, docsetID, "Bad Request")
		return
	}
	mode, ok := docModel.ParseIndexMode(req.Mode)
	if !ok {
		WriteErrorResponse(w, http.StatusBadRequest, docsetID, `mode must be "create" or "recreate"`)
		return
	}

	processNewJobData(r, w, newJobData{
		jobType:  jobModel.JobTypeBuildIndex,
		docsetId: docsetID,
		mode:     mode.String(),
	})
}

// AskDocsetHandler queues a question for the docset agent. Without chatID a
// new chat is started and its id returned.
//
//	POST /docsets/{id}/ask
func AskDocsetHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	docsetID := utils.GetChiURLParam(r, "id")
	defer closeBody(r.Body)

	var requestData api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || !ValidateChatRequest(r.Context(), requestData) {
		logRH.Warn("Bad Chat Request", "error", err, "chatId", requestData.ChatID)
		WriteErrorResponse(w, http.StatusBadRequest, requestData.ChatID, "Bad Request")
		return
	}
	if !isIndexed(docsetID) {
		WriteErrorResponse(w, http.StatusConflict, docsetID, "Docset is not indexed, POST /docsets/"+docsetID+"/index first")
		return
	}

	chatID := requestData.ChatID
	isNewChat := chatID == ""
	if isNewChat {
		chatID = utils.GetNewUUID()
		logRH.Debug("New Chat request", "chatID", chatID)
	}
	processNewJobData(r, w, newJobData{
		jobType:   jobModel.JobTypeQuery,
		docsetId:  docsetID,
		chatId:    chatID,
		message:   requestData.Message,
		isNewChat: isNewChat,
	})
}

// GetStatusHandler returns the job with its result once finished.
//
//	GET /status/{id}
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, traceOf(r.Context()))

	logRH.Debug("Get Status Request", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		logRH.Error("Couldn't close the request body", "error", err)
	}
}
