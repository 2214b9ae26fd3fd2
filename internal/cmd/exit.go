// Package cmd provides command implementations for the prov CLI.
package cmd

// Exit codes.
const (
	// ExitSuccess indicates the command completed successfully, including
	// changes that need a reboot to take effect.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitValidationError indicates a descriptor or config failed validation.
	ExitValidationError = 2

	// ExitConnectivityError indicates a repository could not be reached.
	ExitConnectivityError = 3

	// ExitLocked indicates another process holds the working folder lock.
	ExitLocked = 4

	// ExitNotFound indicates a product, version, or artifact was not found.
	ExitNotFound = 5

	// ExitIncompatibleAPIVersion indicates a product needs a newer deployment API.
	ExitIncompatibleAPIVersion = 6

	// ExitDeploymentFailed indicates at least one component deployer failed.
	ExitDeploymentFailed = 7

	// ExitConfigurationMissing indicates no usable repository configuration.
	ExitConfigurationMissing = 8
)

// ExitCodeName returns the name of the exit code.
func ExitCodeName(code int) string {
	switch code {
	case ExitSuccess:
		return "Success"
	case ExitGeneralError:
		return "General Error"
	case ExitValidationError:
		return "Validation Error"
	case ExitConnectivityError:
		return "Connectivity Error"
	case ExitLocked:
		return "Locked"
	case ExitNotFound:
		return "Not Found"
	case ExitIncompatibleAPIVersion:
		return "Incompatible API Version"
	case ExitDeploymentFailed:
		return "Deployment Failed"
	case ExitConfigurationMissing:
		return "Configuration Missing"
	default:
		return "Unknown"
	}
}
