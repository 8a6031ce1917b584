package remote

import "encoding/json"

// The remote store's field names are load-bearing. A production incident
// traced every corrupted push to a single renamed field: the server receives
// "dataset_name", ignores it, and silently files the content under a
// placeholder dataset. The payload types below are the only place request
// bodies are built, their tags carry the exact required casing, and
// checkRequiredFields re-reads the marshaled bytes so a future refactor that
// loses a tag fails loudly before the request leaves the process.

// addPayload is the body for POST /api/v1/add
type addPayload struct {
	// Data is the content list. The server substitutes a placeholder value
	// when this key is absent instead of erroring.
	Data []string `json:"data"`

	// DatasetName must be camelCase; "dataset_name" is silently ignored.
	DatasetName string `json:"datasetName"`

	DatasetID string   `json:"datasetId,omitempty"`
	NodeSet   []string `json:"nodeSet,omitempty"`
}

// searchPayload is the body for POST /api/v1/search. searchType and topK
// follow a different casing convention than the generic fields.
type searchPayload struct {
	Query      string   `json:"query"`
	SearchType string   `json:"searchType"`
	TopK       int      `json:"topK"`
	Datasets   []string `json:"datasets,omitempty"`
}

// processPayload is the body for POST /api/v1/process
type processPayload struct {
	Datasets        []string `json:"datasets"`
	RunInBackground bool     `json:"runInBackground"`
}

// statusPayload is the body for POST /api/v1/process/status
type statusPayload struct {
	DatasetIDs []string `json:"datasetIds"`
}

// marshalChecked marshals a payload and verifies the required keys survived
// with their exact casing. A failure is a ContractError: it can only come
// from a local code defect, never from remote state.
func marshalChecked(operation string, payload interface{}, required ...string) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &ContractError{Operation: operation, Detail: err.Error()}
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, &ContractError{Operation: operation, Detail: "payload is not a JSON object"}
	}

	for _, key := range required {
		if _, ok := keys[key]; !ok {
			return nil, &ContractError{Operation: operation, Detail: "missing required field " + key}
		}
	}

	return data, nil
}

func buildAddPayload(content []string, collection, collectionID string, nodeSet []string) ([]byte, error) {
	if len(content) == 0 {
		return nil, &ContractError{Operation: "add", Detail: "content list is empty"}
	}
	if collection == "" {
		return nil, &ContractError{Operation: "add", Detail: "collection name is empty"}
	}

	return marshalChecked("add", addPayload{
		Data:        content,
		DatasetName: collection,
		DatasetID:   collectionID,
		NodeSet:     nodeSet,
	}, "data", "datasetName")
}

func buildSearchPayload(query, searchType string, topK int, collections []string) ([]byte, error) {
	if query == "" {
		return nil, &ContractError{Operation: "search", Detail: "query is empty"}
	}
	if searchType == "" {
		return nil, &ContractError{Operation: "search", Detail: "search type is empty"}
	}
	if topK <= 0 {
		return nil, &ContractError{Operation: "search", Detail: "topK must be positive"}
	}

	return marshalChecked("search", searchPayload{
		Query:      query,
		SearchType: searchType,
		TopK:       topK,
		Datasets:   collections,
	}, "query", "searchType", "topK")
}

func buildProcessPayload(collections []string, runInBackground bool) ([]byte, error) {
	if len(collections) == 0 {
		return nil, &ContractError{Operation: "process", Detail: "collection list is empty"}
	}

	return marshalChecked("process", processPayload{
		Datasets:        collections,
		RunInBackground: runInBackground,
	}, "datasets", "runInBackground")
}

func buildStatusPayload(collectionIDs []string) ([]byte, error) {
	if len(collectionIDs) == 0 {
		return nil, &ContractError{Operation: "status", Detail: "collection id list is empty"}
	}

	return marshalChecked("status", statusPayload{
		DatasetIDs: collectionIDs,
	}, "datasetIds")
}
