package state

// ServiceListStateType selects the reduction applied by ServiceListState.
type ServiceListStateType int

const (
	ServiceListNum ServiceListStateType = iota
	ServiceListNumPending
	ServiceListNumHandledProblems
	ServiceListNumUnhandledProblems
	ServiceListNumOK
	ServiceListNumWarn
	ServiceListNumCrit
	ServiceListNumUnknown
	ServiceListWorstState
	ServiceListNumHardOK
	ServiceListNumHardWarn
	ServiceListNumHardCrit
	ServiceListNumHardUnknown
	ServiceListWorstHardState
)

// ServiceListState folds a list of services into one integer: a count or a
// worst-seen state, skipping services the user may not see. It is a pure
// function of its inputs and keeps no state between calls.
type ServiceListState struct {
	Type ServiceListStateType
}

// Reduce applies the configured reduction over the authorized services.
func (s ServiceListState) Reduce(services []*Service, user User) int32 {
	var result int32
	if s.Type == ServiceListWorstState || s.Type == ServiceListWorstHardState {
		result = int32(ServiceOK)
	}
	for _, svc := range services {
		if !user.IsAuthorizedForService(svc) {
			continue
		}
		s.update(svc, &result)
	}
	return result
}

func (s ServiceListState) update(svc *Service, result *int32) {
	switch s.Type {
	case ServiceListNum:
		*result++
	case ServiceListNumPending:
		if !svc.HasBeenChecked {
			*result++
		}
	case ServiceListNumHandledProblems:
		if svc.HasBeenChecked && svc.HasProblem() && svc.ProblemHandled() {
			*result++
		}
	case ServiceListNumUnhandledProblems:
		if svc.HasBeenChecked && svc.HasProblem() && !svc.ProblemHandled() {
			*result++
		}
	case ServiceListNumOK:
		if svc.HasBeenChecked && svc.State == ServiceOK {
			*result++
		}
	case ServiceListNumWarn:
		if svc.HasBeenChecked && svc.State == ServiceWarning {
			*result++
		}
	case ServiceListNumCrit:
		if svc.HasBeenChecked && svc.State == ServiceCritical {
			*result++
		}
	case ServiceListNumUnknown:
		if svc.HasBeenChecked && svc.State == ServiceUnknown {
			*result++
		}
	case ServiceListWorstState:
		if svc.HasBeenChecked && Worse(svc.State, ServiceState(*result)) {
			*result = int32(svc.State)
		}
	case ServiceListNumHardOK:
		if svc.HasBeenChecked && svc.HardState == ServiceOK {
			*result++
		}
	case ServiceListNumHardWarn:
		if svc.HasBeenChecked && svc.HardState == ServiceWarning {
			*result++
		}
	case ServiceListNumHardCrit:
		if svc.HasBeenChecked && svc.HardState == ServiceCritical {
			*result++
		}
	case ServiceListNumHardUnknown:
		if svc.HasBeenChecked && svc.HardState == ServiceUnknown {
			*result++
		}
	case ServiceListWorstHardState:
		if svc.HasBeenChecked && Worse(svc.HardState, ServiceState(*result)) {
			*result = int32(svc.HardState)
		}
	}
}
