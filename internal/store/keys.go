package store

import "strconv"

// Store key layout. Everything the engine shares with other workers or with
// upstream/downstream services lives under the watcher: prefix.
const (
	// queues
	KeyPriceQueue    = "watcher:price-queue" // upstream socket bridge RPUSHes ticks here
	KeyNewOrderQueue = "watcher:new-orders"  // order service RPUSHes changed order ids here
	KeyPostQueue     = "watcher:post-orders" // outbound "{id}={action}" token stream

	// hashes
	KeyOrderDetail    = "watcher:order-detail"    // raw order documents, owned by the order service
	KeyWatchOrders    = "watcher:watch-orders"    // flattened watch orders, owned by the engine
	KeyTrendlineQueue = "watcher:trendline-queue" // trendline recomputation rows
	KeyMarketData     = "watcher:market-data"     // per-symbol market metadata incl. tickSize

	// sorted sets
	KeyStartSchedule = "watcher:start-schedule" // order id scored by activation time
	KeyEndSchedule   = "watcher:end-schedule"   // order id scored by expiry time

	// sets
	KeyTickSizeKeys = "watcher:ticksize-keys" // "{symbol}:..." enumeration of known symbols
)

// WatchBucket names the scored watch set for one (symbol, direction) pair.
// Direction +1 buckets are scanned when the price falls, -1 when it rises.
func WatchBucket(symbol string, direction int) string {
	return "watcher:watch:" + symbol + ":" + strconv.Itoa(direction)
}

// IndicatorIndex names the membership hash mapping an indicator signature to
// the orders subscribed to it for one symbol/candle-size pair.
func IndicatorIndex(symbolKline string) string {
	return "watcher:indicators:" + symbolKline
}

// StrategyOrders names the hash of strategy order records for one
// symbol/candle-size pair.
func StrategyOrders(symbolKline string) string {
	return "watcher:strategy-orders:" + symbolKline
}

// SymbolKline builds the "{symbol}_{candleSize}" composite, e.g. "ETH-USD_15".
func SymbolKline(symbol, candleSize string) string {
	return symbol + "_" + candleSize
}
