// Package health holds the health report model returned by the backend and
// the status classification applied to it.
package health

// ServiceID identifies one backend dependency reported by /health.
type ServiceID string

// Known service identifiers.
const (
	VertexAIGemini ServiceID = "vertex_ai_gemini"
	VertexAIIndex  ServiceID = "vertex_ai_index"
	DocumentAI     ServiceID = "document_ai"
	CloudStorage   ServiceID = "cloud_storage"
	Firestore      ServiceID = "firestore"
	CloudSQL       ServiceID = "cloud_sql"
	SecretManager  ServiceID = "secret_manager"
)

// Group buckets services into the rows of the dashboard grid.
type Group string

// Service groups, in display order.
const (
	GroupAI       Group = "AI Services"
	GroupStorage  Group = "Storage Services"
	GroupSecurity Group = "Security Services"
)

// Service describes how a known dependency is displayed.
type Service struct {
	ID          ServiceID
	DisplayName string
	Group       Group
}

// services is the fixed set of dependencies, in grid order.
var services = []Service{
	{ID: VertexAIGemini, DisplayName: "Vertex AI Gemini", Group: GroupAI},
	{ID: VertexAIIndex, DisplayName: "Vertex AI Vector Search", Group: GroupAI},
	{ID: DocumentAI, DisplayName: "Document AI", Group: GroupAI},
	{ID: CloudStorage, DisplayName: "Cloud Storage", Group: GroupStorage},
	{ID: Firestore, DisplayName: "Firestore Database", Group: GroupStorage},
	{ID: CloudSQL, DisplayName: "Cloud SQL", Group: GroupStorage},
	{ID: SecretManager, DisplayName: "Secret Manager", Group: GroupSecurity},
}

// Services returns the known services in display order. The slice is a copy.
func Services() []Service {
	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// Lookup returns the service description for id.
func Lookup(id ServiceID) (Service, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

// IsKnown reports whether id is one of the displayed services.
func IsKnown(id ServiceID) bool {
	_, ok := Lookup(id)
	return ok
}
