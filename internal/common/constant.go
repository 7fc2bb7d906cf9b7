package common

// AccessTokenHeaderName is the metadata key used to carry the access token
// on inbound requests.
const AccessTokenHeaderName = "access_token"

// StepUpTokenHeaderName is the metadata key used to carry a step-up
// elevation token on requests performing sensitive operations.
const StepUpTokenHeaderName = "step_up_token"
