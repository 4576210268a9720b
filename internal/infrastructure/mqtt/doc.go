// Package mqtt provides MQTT client connectivity for Smart Office Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Smart Office uses MQTT as the message bus between the core service and
// the building hardware. Motion sensors publish detections on event topics,
// and the rule engine publishes device commands back out:
//
//	Motion Sensors → MQTT Broker → Smart Office Core → MQTT Broker → Devices
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all motion sensor events
//	err = client.Subscribe(mqtt.Topics{}.AllMotionEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.DeviceCommand("light-desk-12")
//	client.Publish(topic, []byte(`{"action":"turn_on"}`), 1, false)
package mqtt
