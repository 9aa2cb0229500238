package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a geno project",
		Long:  "Initialize a geno project by creating the .geno directory, a default config, and a starter API knowledge base.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir, err := os.Getwd()
			if err != nil {
				return err
			}

			genoDir := filepath.Join(workDir, ".geno")
			log.Info().Str("dir", genoDir).Msg("creating geno directory")
			if err := os.MkdirAll(genoDir, 0o755); err != nil {
				return fmt.Errorf("create geno dir: %w", err)
			}

			configPath := filepath.Join(genoDir, "config.json")
			if _, err := os.Stat(configPath); err == nil {
				log.Info().Msg("config.json already exists, skipping")
			} else {
				log.Info().Str("path", configPath).Msg("installing default config")
				if err := writeJSONFile(configPath, defaultConfig()); err != nil {
					return err
				}
			}

			kbPath := filepath.Join(genoDir, "api_documentation.json")
			if _, err := os.Stat(kbPath); err == nil {
				log.Info().Msg("api_documentation.json already exists, skipping")
			} else {
				log.Info().Str("path", kbPath).Msg("installing starter knowledge base")
				if err := writeJSONFile(kbPath, starterKnowledge()); err != nil {
					return err
				}
			}

			fmt.Println("geno initialized successfully")
			return nil
		},
	}
}

func writeJSONFile(path string, value map[string]any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func defaultConfig() map[string]any {
	return map[string]any{
		"models": map[string]any{
			"generator": map[string]any{
				"provider":    "openai",
				"model":       "gpt-4o",
				"api_key_env": "OPENAI_API_KEY",
			},
			"evaluator": map[string]any{
				"provider":    "gemini",
				"model":       "gemini-2.0-flash",
				"api_key_env": "GEMINI_API_KEY",
			},
		},
		"pipeline": map[string]any{
			"max_correction_attempts":   3,
			"max_optimization_attempts": 3,
			"score_threshold":           75,
		},
		"knowledge": map[string]any{
			"path": filepath.Join(".geno", "api_documentation.json"),
		},
		"sandbox": map[string]any{
			"python":  "python3",
			"timeout": 120,
		},
		"retention": map[string]any{
			"keep_last": 50,
			"keep_days": 30,
		},
	}
}

// starterKnowledge covers the core Reachy 2 SDK surface. Projects with
// a fuller API dump should replace the file with their own export.
func starterKnowledge() map[string]any {
	return map[string]any{
		"version": "1.0",
		"modules": []any{
			map[string]any{
				"name": "reachy2_sdk",
				"classes": []any{
					map[string]any{
						"name": "ReachySDK",
						"doc":  "Main entry point for a Reachy 2 robot connection.",
						"methods": []any{
							method("__init__", "__init__(host: str)", "Connect to the robot at the given host."),
							method("turn_on", "turn_on()", "Enable motor torque on all parts."),
							method("turn_off_smoothly", "turn_off_smoothly()", "Ramp motors down gently before disabling torque."),
							method("disconnect", "disconnect()", "Close the connection to the robot."),
							method("goto_posture", "goto_posture(posture: str)", "Move the whole robot to a named posture such as 'default'."),
						},
					},
				},
			},
			map[string]any{
				"name": "reachy2_sdk.parts.arm",
				"classes": []any{
					map[string]any{
						"name": "Arm",
						"doc":  "One robot arm, reached via reachy.r_arm or reachy.l_arm.",
						"methods": []any{
							method("goto", "goto(positions: list[float], duration: float = 2.0)", "Move the seven arm joints to the given angles in degrees."),
							method("goto_posture", "goto_posture(posture: str)", "Move the arm to a named posture."),
							method("translate_by", "translate_by(x: float, y: float, z: float)", "Translate the end effector in meters."),
							method("rotate_by", "rotate_by(roll: float, pitch: float, yaw: float)", "Rotate the end effector in degrees."),
						},
					},
				},
			},
			map[string]any{
				"name": "reachy2_sdk.parts.head",
				"classes": []any{
					map[string]any{
						"name": "Head",
						"doc":  "The robot head, reached via reachy.head.",
						"methods": []any{
							method("look_at", "look_at(x: float, y: float, z: float, duration: float = 1.0)", "Point the head toward a position in the robot frame."),
							method("goto", "goto(positions: list[float], duration: float = 1.0)", "Move the neck joints to the given angles in degrees."),
						},
					},
				},
			},
			map[string]any{
				"name": "reachy2_sdk.parts.hand",
				"classes": []any{
					map[string]any{
						"name": "Hand",
						"doc":  "A gripper, reached via arm.gripper.",
						"methods": []any{
							method("open", "open()", "Open the gripper fully."),
							method("close", "close()", "Close the gripper fully."),
							method("set_opening", "set_opening(percentage: float)", "Set the gripper opening between 0 and 100 percent."),
						},
					},
				},
			},
		},
	}
}

func method(name, signature, doc string) map[string]any {
	return map[string]any{"name": name, "signature": signature, "doc": doc}
}
