package api

// Account is an owner of applications: a user or an organisation.
type Account struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Application is a remote application (website) on the platform.
type Application struct {
	ID             int    `json:"id"`
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	Domain         string `json:"domain"`
	OrganisationID int    `json:"organisation_id"`
	OwnerID        int    `json:"owner_id"`
}

// ApplicationList is the response of the applications listing endpoint.
type ApplicationList struct {
	Accounts     []Account     `json:"accounts"`
	Applications []Application `json:"applications"`
}

// Deployment is one deployment of an environment.
type Deployment struct {
	UUID    string `json:"uuid"`
	Author  string `json:"author"`
	Status  string `json:"status"`
	Success bool   `json:"success"`
}

// EnvironmentDeployments groups deployments by environment.
type EnvironmentDeployments struct {
	Environment     string       `json:"environment"`
	EnvironmentUUID string       `json:"environment_uuid"`
	Deployments     []Deployment `json:"deployments"`
}

// EnvironmentVariable is a single variable within an environment.
// Value is omitted by the server for sensitive variables.
type EnvironmentVariable struct {
	Name        string  `json:"name"`
	Value       *string `json:"value,omitempty"`
	IsSensitive bool    `json:"is_sensitive"`
}

// EnvironmentVariables groups variables by environment.
type EnvironmentVariables struct {
	Environment     string                `json:"environment"`
	EnvironmentUUID string                `json:"environment_uuid"`
	Variables       []EnvironmentVariable `json:"environment_variables"`
}

// Account information for the authenticated user.
type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
