package llm

const suggestGroupingPrompt = `You are assisting an EEG analysis tool. An event stream was mined for its
embedded field schema. Each field below lists how many distinct values it
took across the sample, its cardinality (distinct / sampled), and a few
sample values.

Pick the fields that encode experimental conditions (shared across many
trials, e.g. stimulus category) for grouping trials before averaging.
Exclude trial-unique metadata (trial numbers, reaction times, timestamps).
Pick at most 3 fields, highest priority first. Optionally propose canonical
value remappings for coded values (e.g. "y" -> "word").

Respond ONLY with JSON, no markdown:
{"grouping_fields":["field_a","field_b"],"value_mappings":{"field_b":{"y":"word","n":"nonword"}}}

If no field is suitable, respond with {"grouping_fields":[]}.

Discovered fields (from %d sampled events):
%s`
