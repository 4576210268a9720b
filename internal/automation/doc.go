// Package automation provides the rule engine for Smart Office Core.
//
// Rules bind sensor conditions to device actions. A motion event runs
// every enabled rule's conditions against the event; matched rules
// resolve their actions (direct device commands or scene references)
// into a flat command list, and the outcome is persisted as an
// Execution record.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│  Stateless per-event evaluation pipeline               │
//	│  ┌──────────────┐    ┌──────────────┐                │
//	│  │RuleRepository│    │SceneRepository│               │
//	│  └──────────────┘    └──────────────┘                │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌──────────────────────────────────────────────┐    │
//	│  │  Evaluation Pipeline                          │    │
//	│  │  1. Append raw event (always)                 │    │
//	│  │  2. Gate on detected flag                     │    │
//	│  │  3. Scan enabled rules in insertion order     │    │
//	│  │  4. Match conditions (evaluator.go)           │    │
//	│  │  5. Resolve actions to commands (resolver.go) │    │
//	│  │  6. Append execution, dispatch MQTT commands  │    │
//	│  └──────────────────────────────────────────────┘    │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Rule: Named condition set plus ordered action list
//   - Condition: One predicate (motion zone, time window, lux bound)
//   - Scene: Named group of device states, referenced from rule actions
//   - ActionCommand: Fully resolved device command ready to dispatch
//   - Execution: Audit record of one evaluation run
//   - Engine: Orchestrator tying repositories, dispatch, and telemetry
//
// # Thread Safety
//
// Engine holds no mutable state between calls; concurrent evaluations
// each read their own rule snapshot from the repository. Repositories
// rely on database/sql connection pooling for safety.
//
// # Usage
//
//	rules := automation.NewSQLiteRuleRepository(db)
//	scenes := automation.NewSQLiteSceneRepository(db)
//	log := automation.NewSQLiteExecutionLog(db)
//
//	engine := automation.NewEngine(rules, scenes, log, nil, logger)
//	engine.SetDispatcher(mqttClient)
//
//	result, err := engine.HandleMotion(ctx, event)
package automation
