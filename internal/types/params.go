package types

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	workloadRe    = regexp.MustCompile(`^[a-z][a-z0-9]{1,19}$`)
	environmentRe = regexp.MustCompile(`^[a-z][a-z0-9]{1,9}$`)
	deployerRe    = regexp.MustCompile(`^[a-zA-Z0-9+=,.@_-]{1,64}$`)
	repositoryRe  = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)
	branchRe      = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,100}$`)
	connectionRe  = regexp.MustCompile(`^[A-Za-z0-9:/._-]{1,256}$`)
	imageRe       = regexp.MustCompile(`^[a-z0-9]+([._/-][a-z0-9]+)*(:[A-Za-z0-9._-]+)?$`)
)

// StackParams is the full parameter set accepted by the provisioner.
// All fields are validated against naming patterns before any resource
// action is taken.
type StackParams struct {
	Workload      string    `json:"workload"`
	Environment   string    `json:"environment"`
	Region        string    `json:"region"`
	Deployer      string    `json:"deployer"`
	Repository    string    `json:"repository"`
	Branch        string    `json:"branch"`
	ConnectionRef string    `json:"connection_ref"`
	PriceTier     PriceTier `json:"price_tier"`
	BuildImage    string    `json:"build_image"`
}

// ValidationError reports a parameter that failed validation.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) ValidationError {
	return ValidationError{Message: fmt.Sprintf(format, args...)}
}

func (p *StackParams) Validate() error {
	if !workloadRe.MatchString(p.Workload) {
		return validationErrorf("invalid workload name %q", p.Workload)
	}
	if !environmentRe.MatchString(p.Environment) {
		return validationErrorf("invalid environment name %q", p.Environment)
	}
	if p.Region == "" {
		return validationErrorf("region is required")
	}
	if !deployerRe.MatchString(p.Deployer) {
		return validationErrorf("invalid deployer identity %q", p.Deployer)
	}
	if !repositoryRe.MatchString(p.Repository) {
		return validationErrorf("invalid repository identifier %q", p.Repository)
	}
	if p.Branch == "" {
		p.Branch = "main"
	}
	if !branchRe.MatchString(p.Branch) || strings.Contains(p.Branch, "..") {
		return validationErrorf("invalid branch name %q", p.Branch)
	}
	if !connectionRe.MatchString(p.ConnectionRef) {
		return validationErrorf("invalid connection reference %q", p.ConnectionRef)
	}
	if _, err := ParsePriceTier(string(p.PriceTier)); err != nil {
		return ValidationError{Message: err.Error()}
	}
	if !imageRe.MatchString(p.BuildImage) {
		return validationErrorf("invalid build image reference %q", p.BuildImage)
	}
	return nil
}

// BucketName derives the unique bucket name for the stack.
func (p *StackParams) BucketName() string {
	return fmt.Sprintf("%s-%s-%s-site", p.Workload, p.Environment, p.Region)
}
