// engine.go - Wiring for the engine's components.
package engine

import "github.com/sirupsen/logrus"

// Engine bundles the components over one store. The zero-dependency way to
// stand up the whole thing:
//
//	eng := engine.New(store, logger)
//	sale, err := eng.Sales.ProcessSale(ctx, req)
type Engine struct {
	Store   Store
	Ledger  *StockLedger
	Catalog *Catalog
	Sales   *SaleProcessor
	Restock *RestockWorkflow
	Query   *Query
	Audit   *AuditLogger
}

// New wires every component over the given store. app receives
// internal-health reports from the audit logger; it may be nil.
func New(store Store, app *logrus.Logger) *Engine {
	audit := NewAuditLogger(store, app)
	ledger := NewStockLedger(store)
	return &Engine{
		Store:   store,
		Ledger:  ledger,
		Catalog: NewCatalog(store, ledger, audit),
		Sales:   NewSaleProcessor(store, ledger, audit),
		Restock: NewRestockWorkflow(store, ledger, audit),
		Query:   NewQuery(store),
		Audit:   audit,
	}
}
