// Package festival holds the program and screening lifecycles, program
// membership and account rules. It performs no I/O; services in the
// application package load aggregates, call the guarded methods defined here
// and persist the result.
//
// Aggregates have two construction paths. NewProgram and NewScreening apply
// every guard and are used by business operations. RehydrateProgram and
// RehydrateScreening rebuild stored records as-is and are meant for
// repositories only.
package festival
