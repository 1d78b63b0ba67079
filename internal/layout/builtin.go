package layout

const (
	screenClock = "The date and time displayed on the screen."
	photoClock  = "The date and time the image was taken; use the capture time given in the instructions when no clock is visible."
)

// Builtin returns the panel layouts of the BSW tiraTex 1600 tape extrusion line and the
// auxiliary machines photographed alongside it. Table names match the production database.
func Builtin() []Descriptor {
	return []Descriptor{
		newDescriptor(1, "material_configuration", "Material and process configuration", "control_panel1",
			"A configuration screen from a machine used in woven bag manufacturing, listing material factors, tape geometry, ratios and recipe percentages.",
			[]string{
				"HDPE factor and PP factor",
				"HDPE exponent and PP exponent",
				"HDPE and PP output factor for melt pump",
				"Titer (g/9000m) and number of tapes",
				"Edge trim per side, tape width and cutting width (mm)",
				"Total ratio (theoretical and actual) and stretch ratio (actual)",
				"Calculated pump RPM",
				"Raw material % and additive percentages (1-4)",
				"Company name, extruder type, screw type, die type",
				"Any alarm/warning messages",
			},
			[]Field{
				timestampField(screenClock),
				num("HDPE_factor", "The first numeric value from the 'HDPE' section, interpreted as HDPE factor."),
				num("PP_factor", "The second numeric value from the 'HDPE' section, interpreted as PP factor."),
				num("HDPE_Exponent", "The first numeric value from the 'FACTOR' section, interpreted as HDPE exponent."),
				num("PP_Exponent", "The second numeric value from the 'FACTOR' section, interpreted as PP exponent."),
				num("HDPE_OutputFactorMeltPump", "The first numeric value directly below the 'FACTOR' section, interpreted as HDPE output factor for melt pump."),
				num("PP_OutputFactorMeltPump", "The second numeric value directly below the 'FACTOR' section, interpreted as PP output factor for melt pump."),
				num("Titer_g_9000m", "The large blue numeric value, interpreted as titer in [g/9000m]."),
				whole("NumberOfTapes", "The numeric value next to the large blue value, interpreted as the number of tapes."),
				num("EdgeTrimSide_mm", "The numeric value next to 'width', interpreted as edge trim per side in [mm]."),
				num("TapeWidth_mm", "The numeric value next to 'T. film width', interpreted as tape width in [mm]."),
				num("CuttingWidth_mm", "The numeric value next to 'Cutting width', interpreted as cutting width in [mm]."),
				num("TotalRatioTheoretical", "The numeric value next to 'Total Ratio', interpreted as total ratio theoretical."),
				num("TotalRatioActual", "The numeric value next to 'Extend Ratio', interpreted as total ratio actual."),
				num("StretchRatioActual", "The numeric value next to 'Windup Ratio', interpreted as stretch ratio actual."),
				num("CalculatedPumpRPM", "The numeric value next to 'Pump Sum', interpreted as calculated pump RPM."),
				num("RawMaterialPercentage", "The percentage listed under 'rawmaterial %'."),
				required(Field{Name: "AdditivePercentage", Type: TypeRealList, Description: "The percentage values listed under 'additive 1-4 %', in order."}),
				required(str("Company", "The company name displayed on the screen.")),
				str("ExtruderType", "The extruder type displayed on the screen."),
				str("ScrewType", "The screw type displayed on the screen."),
				str("DieType", "The die type displayed on the screen."),
				alarmsField(),
			}),

		newDescriptor(2, "temperature_motor", "Temperature and motor performance", "control_panel2",
			"A screen from a machine used in woven bag manufacturing showing heater temperatures and three columns of line speed, amperage and torque.",
			[]string{
				"Target/actual temperatures for 2 oil heaters",
				"Target/actual hot air temperatures",
				"Annealing %",
				"Three columns each with line speed, amperage and torque",
				"Any alarm/warning messages",
			},
			[]Field{
				timestampField(screenClock),
				num("OIL_HEATER_Target_Temp_1", "The target temperature for the first oil heater."),
				num("OIL_HEATER_Actual_Temp_1", "The actual temperature for the first oil heater."),
				num("OIL_HEATER_Target_Temp_2", "The target temperature for the second oil heater."),
				num("OIL_HEATER_Actual_Temp_2", "The actual temperature for the second oil heater."),
				num("HOT_AIR_Target_Temp", "The target temperature for the hot air section."),
				num("HOT_AIR_Actual_Temp", "The actual temperature for the hot air section."),
				num("ANNEALING_Percentage", "The annealing percentage."),
				num("Line_Speed_1", "The line speed from the first column."),
				num("Amperage_1", "The amperage from the first column."),
				num("Torque_1", "The torque from the first column."),
				num("Line_Speed_2", "The line speed from the second column."),
				num("Amperage_2", "The amperage from the second column."),
				num("Torque_2", "The torque from the second column."),
				num("Line_Speed_3", "The line speed from the third column."),
				num("Amperage_3", "The amperage from the third column."),
				num("Torque_3", "The torque from the third column."),
				alarmsField(),
			}),

		newDescriptor(3, "godet_extrusion_detail", "Godet and extrusion detail view", "control_panel4",
			"A BSW MACHINERY tiraTex 1600 detail screen with godet speeds and currents, oil heater temperatures and extruder zone readings.",
			[]string{
				"Oil heater 1 and 2 temperatures",
				"Total ratio and stretch ratio",
				"Annealing percentage",
				"Godet 1 speed (m/s) and temperature",
				"Godet 2-4 speed (m/min) and current (A), godet 4 torque %",
				"Zone 1 and zone 2 temperature, pressure and motor load",
				"Any alarm/warning messages",
			},
			[]Field{
				timestampField(screenClock),
				num("OilHeater1_Temp_C", "The actual temperature of the first oil heater in degrees Celsius."),
				num("OilHeater2_Temp_C", "The actual temperature of the second oil heater in degrees Celsius."),
				num("TotalRatio", "The total ratio value."),
				num("StretchRatio", "The stretch ratio value."),
				str("Annealing_percent", "The annealing percentage values as shown, as a string."),
				num("Godet1_speed_ms", "The speed of the first godet in m/s."),
				num("Godet1_temp_C", "The temperature of the first godet in degrees Celsius."),
				num("Godet2_speed_mpm", "The speed of the second godet in m/min."),
				num("Godet2_current_A", "The current of the second godet in Amperes."),
				num("Godet3_speed_mpm", "The speed of the third godet in m/min."),
				num("Godet3_current_A", "The current of the third godet in Amperes."),
				num("Godet4_speed_mpm", "The speed of the fourth godet in m/min."),
				num("Godet4_current_A", "The current of the fourth godet in Amperes."),
				num("Godet4_torque_percent", "The torque of the fourth godet as a percentage."),
				num("Extruder_speed_rpm", "The extruder speed in rpm, if visible."),
				num("Zone1_temp_C", "The temperature of zone 1 in degrees Celsius."),
				num("Zone1_pressure", "The pressure in zone 1."),
				num("Zone1_motor_load_percent", "The motor load of zone 1 as a percentage."),
				num("Zone2_temp_C", "The temperature of zone 2 in degrees Celsius."),
				num("Zone2_pressure", "The pressure in zone 2."),
				num("Zone2_motor_load_percent", "The motor load of zone 2 as a percentage."),
				num("Zone2_torque_percent", "The torque of zone 2 as a percentage."),
				alarmsField(),
			}),

		newDescriptor(4, "extrusion_overview", "Extrusion line process overview", "control_panel3",
			"A BSW MACHINERY tiraTex 1600 overview screen with a graphical diagram of the extrusion line and numeric readings near the machine icons.",
			[]string{
				"Line speed (m/min or rpm)",
				"Cut tension (kg)",
				"Extruder speed (rpm)",
				"Take-off speed (m/min)",
				"Film oscillation (mm)",
				"Water exhaust and water pump status (ON/OFF) if shown",
				"A graphical diagram of the extrusion line with dynamic numeric data near machine icons",
				"Any alarm/warning messages, typically at the bottom of the screen",
			},
			overviewFields(false)),

		newDescriptor(5, "alarm_summary", "Alarm-focused operational summary", "control_panel5",
			"A BSW MACHINERY tiraTex 1600 operational summary with an 'EXTRUDER ON' button and a prominent alarm area.",
			[]string{
				"Line speed (m/min) and cut tension (kg)",
				"Extruder speed (rpm) and take-off speed (m/min)",
				"Film oscillation (mm)",
				"Water exhaust and water pump status (ON/OFF)",
				"Extruder status (ON/OFF) based on the 'EXTRUDER ON' button",
				"Any alarm/warning messages",
			},
			overviewFields(true)),

		newDescriptor(6, "extruder_zones", "Extruder details and zone temperatures", "control_panel6",
			"A BSW MACHINERY tiraTex 1600 extruder screen with output, extruder speed and torque, and the barrel zone temperatures.",
			[]string{
				"Line speed (m/min) and output (kg)",
				"Extruder rpm and torque (Nm)",
				"Zone temperatures Z1 to Z6, Z11, Z13 and Z14",
				"Any alarm/warning messages",
			},
			[]Field{
				timestampField(screenClock),
				num("LineSpeed_m_min", "The line speed in m/min."),
				num("Output_kg", "The extruder output in kg."),
				num("Extruder_rpm", "The extruder speed in rpm."),
				num("Extruder_Nm", "The extruder torque in Nm."),
				num("Z1_temp", "The temperature of zone Z1."),
				num("Z2_temp", "The temperature of zone Z2."),
				num("Z3_temp", "The temperature of zone Z3."),
				num("Z4_temp", "The temperature of zone Z4."),
				num("Z5_temp", "The temperature of zone Z5."),
				num("Z6_temp", "The temperature of zone Z6."),
				num("Z11_temp", "The temperature of zone Z11."),
				num("Z13_temp", "The temperature of zone Z13."),
				num("Z14_temp", "The temperature of zone Z14."),
				alarmsField(),
			}),

		newDescriptor(7, "analog_meters", "Analog meter panel", "control_panel7",
			"A simple control panel with two analog meters and three indicator lights.",
			[]string{
				"An analog voltmeter (V)",
				"An analog ammeter (A)",
				"Red, yellow and blue indicator lights",
			},
			[]Field{
				timestampField(photoClock),
				num("Voltmeter_V", "The reading on the voltmeter in volts (V)."),
				num("Ammeter_A", "The reading on the ammeter in amperes (A)."),
				str("RedLight_status", "The status of the red indicator light (ON/OFF)."),
				str("YellowLight_status", "The status of the yellow indicator light (ON/OFF)."),
				str("BlueLight_status", "The status of the blue indicator light (ON/OFF)."),
			}),

		newDescriptor(8, "jiadi_controllers", "JIADI controller pair", "control_panel8",
			"Two separate controllers, a 'JIADI JD-PR18' and a 'JIADI JD-950F-P', along with three indicator lights.",
			[]string{
				"A 'JIADI JD-PR18' controller with SV and PV displays",
				"A 'JIADI JD-950F-P' controller with main and secondary displays",
				"Yellow, green and red indicator lights",
			},
			[]Field{
				timestampField(photoClock),
				num("JD_PR18_SV", "The 'SV' value from the 'JIADI JD-PR18' controller."),
				num("JD_PR18_PV", "The 'PV' value from the 'JIADI JD-PR18' controller."),
				num("JD_950F_P_main_display", "The main display value from the 'JIADI JD-950F-P' controller."),
				num("JD_950F_P_secondary_display", "The secondary display value from the 'JIADI JD-950F-P' controller."),
				str("YellowLight_status", "The status of the yellow indicator light (ON/OFF)."),
				str("GreenLight_status", "The status of the green indicator light (ON/OFF)."),
				str("RedLight_status", "The status of the red indicator light (ON/OFF)."),
			}),

		newDescriptor(9, "loom_production", "Loom production counters", "control_panel9",
			"A Lohia Corp loom screen with production counters, break counts and efficiency.",
			[]string{
				"ACT1 and ACT2 (kg)",
				"Fabric (Mtr) and efficiency (%)",
				"Main switch time and operating time (Hrs)",
				"Warp break, weft break and weft end counters",
				"Tapes/10cm and picks/min",
			},
			[]Field{
				timestampField(photoClock),
				num("ACT1_kg", "The value for ACT1 in kg."),
				num("ACT2_kg", "The value for ACT2 in kg."),
				num("Fabric_Mtr", "The value for Fabric in Mtr."),
				num("Efficiency_percent", "The value for Efficiency in %."),
				str("MainSwitchTime_Hrs", "The value for Main Switch Time in Hrs, as shown."),
				str("OperatingTime_Hrs", "The value for Operating Time in Hrs, as shown."),
				whole("WarpBreak", "The value for Warp Break."),
				whole("WeftBreak", "The value for Weft Break."),
				whole("WeftEnd", "The value for Weft End."),
				num("Tapes_per_10cm", "The value for Tapes/10cm."),
				whole("Picks_per_Min", "The value for Picks/Min."),
			}),

		newDescriptor(10, "intellicon_status", "intelliCon machine status", "control_panel10",
			"A BSW intelliCon screen with run status, speed, shift, efficiency and production totals.",
			[]string{
				"Run status with its numeric value",
				"P/10cm and speed (m/min)",
				"Shift number and efficiency (%)",
				"Total m2 and total m",
				"Recipe values such as '300', '150 g', '432.4' and '118 kg'",
			},
			[]Field{
				timestampField(screenClock),
				str("Run_status", "The status of the machine (e.g., RUN)."),
				num("Run_value", "The numeric value associated with the RUN status."),
				num("P_per_10cm", "The value for P/10cm."),
				num("Speed_m_min", "The speed in m/min."),
				whole("Shift", "The current shift number."),
				num("Efficiency_percent", "The efficiency in %."),
				num("Total_m2", "The total area in m2."),
				num("Total_m", "The total length in m."),
				whole("Value_300", "The value '300' displayed on the screen."),
				whole("Value_150_g_1", "The first value '150 g' displayed on the screen."),
				whole("Value_150_g_2", "The second value '150 g' displayed on the screen."),
				num("Value_432_4", "The value '432.4' displayed on the screen."),
				whole("Value_118_kg", "The value '118 kg' displayed on the screen."),
			}),
	}
}

func overviewFields(withExtruderStatus bool) []Field {
	fields := []Field{
		timestampField(screenClock),
		num("LineSpeed_rpm", "The line speed in rpm."),
		num("CutTension_kg", "The cutting tension in kg."),
		num("ExtruderSpeed_rpm", "The extruder speed in rpm."),
		num("TakeOffSpeed_mpm", "The take-off speed in m/min."),
		num("FilmOscillation_mm", "The film oscillation in mm."),
		str("WaterExhaust_status", "The status of the water exhaust (ON/OFF)."),
		str("WaterPump_status", "The status of the water pump (ON/OFF)."),
	}
	if withExtruderStatus {
		fields = append(fields, str("Extruder_status", "The status of the extruder (ON/OFF) from the 'EXTRUDER ON' button."))
	}
	return append(fields, alarmsField())
}
