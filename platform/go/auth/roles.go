package auth

// Role names as stored on user records.
const (
	RoleSuperAdmin      = "super_admin"
	RoleAdmin           = "admin"
	RoleManager         = "manager"
	RoleWorker          = "worker"
	RoleHandleStalls    = "handle_stalls"
	RoleReadStalls      = "read_stalls"
	RoleHandleWorkers   = "handle_workers"
	RoleReadWorkers     = "read_workers"
	RoleHandleCustomers = "handle_customers"
	RoleReadCustomers   = "read_customers"
)

// Role sets per resource, reused by route groups and services.
var (
	ShiftWriters    = []string{RoleAdmin, RoleManager}
	ShiftReaders    = []string{RoleAdmin, RoleManager, RoleWorker}
	StallWriters    = []string{RoleAdmin, RoleHandleStalls}
	StallReaders    = []string{RoleAdmin, RoleHandleStalls, RoleReadStalls}
	WorkerWriters   = []string{RoleAdmin, RoleHandleWorkers}
	WorkerReaders   = []string{RoleAdmin, RoleHandleWorkers, RoleReadWorkers}
	CustomerWriters = []string{RoleAdmin, RoleHandleCustomers}
	CustomerReaders = []string{RoleAdmin, RoleHandleCustomers, RoleReadCustomers}
)

// ScopeAllSentinel in a user's customers/workers scope grants unrestricted visibility.
const ScopeAllSentinel = "all"
