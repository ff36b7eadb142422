// Package mqtt provides MQTT client connectivity for Lifelog Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is an optional edge transport. Devices and companion apps publish
// behavioural events on lifelog/event/{kind}; the ingest package forwards them
// onto the in-process event bus. Each automation outcome is published on
// lifelog/automation/log/{userID} for subscribers such as a mobile client.
//
//	Companion apps ↔ MQTT Broker ↔ Lifelog Core (ingest, outcome feed)
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - The broker ACL must restrict lifelog/event/# publishing per user
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEvents(), 1,
//	    func(topic string, payload []byte) error {
//	        kind, _ := mqtt.ParseEventTopic(topic)
//	        log.Printf("event %s: %s", kind, payload)
//	        return nil
//	    })
package mqtt
