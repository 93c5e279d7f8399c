// Package flagfile loads flag sets from YAML files into the in-memory
// storage, for development setups, tests, and deployments that version their
// flags alongside their code.
//
// # File Format
//
//	flags:
//	  - key: new-checkout
//	    type: boolean
//	    enabled: true
//	    default: false
//	    rollout: 25
//	  - key: pricing-experiment
//	    type: string
//	    enabled: true
//	    default: control
//	    variants:
//	      - {key: control, weight: 50}
//	      - {key: treatment, weight: 50}
//	    rules:
//	      - name: internal users
//	        priority: 1
//	        conditions:
//	          all:
//	            - {attribute: email, operator: ends_with, value: "@example.com"}
//	        value: treatment
//	    overrides:
//	      - {user: qa-1, value: treatment}
//
// # Usage
//
//	storage, err := flagfile.Load("flags.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	evaluator, err := flags.NewEvaluator(storage)
//
// The loader validates every flag, rule, and override on the way in and
// fails the whole parse on the first invalid entry, so a booting service
// never runs on a partially loaded flag set.
package flagfile
