// Package database wraps a *gorm.DB with connection-pool tuning and a
// background health-check loop, used to open the sqlite capability
// manifest connection with production-grade pool settings instead of a
// bare gorm.Open.
package database
