package sqlassets

import _ "embed"

//go:embed schema/platform/companies.sql
var CompaniesSQL string

//go:embed schema/platform/users.sql
var UsersSQL string

//go:embed schema/company_space/customers.sql
var CustomersSQL string

//go:embed schema/company_space/workers.sql
var WorkersSQL string

//go:embed schema/company_space/stalls.sql
var StallsSQL string

//go:embed schema/company_space/shifts.sql
var ShiftsSQL string

//go:embed schema/company_space/logs.sql
var LogsSQL string

// PlatformDDL lists the root schema statements in dependency order.
func PlatformDDL() []string {
	return []string{CompaniesSQL, UsersSQL}
}

// CompanySpaceDDL lists the per-company schema statements in dependency order.
func CompanySpaceDDL() []string {
	return []string{CustomersSQL, WorkersSQL, StallsSQL, ShiftsSQL, LogsSQL}
}
